package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/actfuse/internal/compiler"
	"github.com/roach88/actfuse/internal/ir"
)

// Error code constants - unified across all CLI commands. Graph
// well-formedness errors use the compiler's E2xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeUnsupported = "E002" // Unsupported model file extension
	ErrCodeNoFiles     = "E003" // Model directory holds no CUE files
	ErrCodeLoadFailed  = "E004" // Model could not be decoded or compiled
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // Document could not be built into a graph
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadError represents an error that occurred while loading a model.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available

	// Details lists the individual document problems for ErrCodeBuildFailed.
	Details []compiler.ValidationError
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadedModel is a model file decoded and built into a graph.
type LoadedModel struct {
	Path  string
	Doc   *compiler.GraphDoc
	Graph *ir.Graph
}

// LoadModel reads the model at path (a .yaml, .yml, .json or .cue file, or
// a directory holding one CUE package) and builds its graph. Every failure
// is a *LoadError. The graph is not validated.
func LoadModel(path string) (*LoadedModel, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing model: %v", err)}
	}

	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(cueFiles) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	} else if !supportedExt(path) {
		return nil, &LoadError{
			Code:    ErrCodeUnsupported,
			Message: fmt.Sprintf("unsupported model format %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path)),
		}
	}

	doc, err := compiler.Load(path)
	if err != nil {
		return nil, convertCompileError(err)
	}

	g, err := compiler.Build(doc)
	if err != nil {
		var docErr *compiler.DocumentError
		if errors.As(err, &docErr) {
			return nil, &LoadError{
				Code:    ErrCodeBuildFailed,
				Message: fmt.Sprintf("invalid model document: %d problem(s)", len(docErr.Errors)),
				Details: docErr.Errors,
			}
		}
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
	}

	return &LoadedModel{Path: path, Doc: doc, Graph: g}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == compiler.ExtCUE {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func supportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case compiler.ExtYAML, compiler.ExtYML, compiler.ExtJSON, compiler.ExtCUE:
		return true
	}
	return false
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// lineOf extracts the line number from a token.Pos.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}
