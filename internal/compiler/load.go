package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Model file extensions understood by Load.
const (
	ExtYAML = ".yaml"
	ExtYML  = ".yml"
	ExtJSON = ".json"
	ExtCUE  = ".cue"
)

// Load reads a model document from path. A directory is loaded as one CUE
// package; a file is decoded according to its extension.
func Load(path string) (*GraphDoc, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if info.IsDir() {
		return LoadCUEDir(path)
	}
	return LoadFile(path)
}

// LoadFile reads a single .yaml, .yml, .json or .cue model file.
func LoadFile(path string) (*GraphDoc, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ExtYAML, ExtYML, ExtJSON, ExtCUE:
	default:
		return nil, fmt.Errorf("load model %s: unsupported extension %q", path, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	var doc *GraphDoc
	switch ext {
	case ExtYAML, ExtYML:
		doc, err = DecodeYAML(data)
	case ExtJSON:
		doc, err = DecodeJSON(data)
	case ExtCUE:
		doc, err = CompileCUE(data, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return doc, nil
}

// LoadCUEDir loads the CUE package in dir and extracts the graph declared
// at GraphPath. Files may split the graph across several declarations; CUE
// unifies them.
func LoadCUEDir(dir string) (*GraphDoc, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("load model %s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load model %s: %w", dir, formatCUEError(inst.Err))
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("load model %s: %w", dir, formatCUEError(err))
	}

	gv := v.LookupPath(cue.ParsePath(GraphPath))
	if !gv.Exists() {
		return nil, fmt.Errorf("load model %s: %w", dir, &CompileError{
			Field:   GraphPath,
			Message: "no graph declared",
		})
	}
	doc, err := CompileGraph(gv)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", dir, err)
	}
	return doc, nil
}
