package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/actfuse/internal/ir"
)

const runColumns = `id, seq, graph_name, status, error, graph_hash_before, graph_hash_after, tool_version, ir_version`

// ReadRun returns a single run. Returns ErrRunNotFound (wrapped) if absent.
func (s *Store) ReadRun(ctx context.Context, runID string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RunRecord{}, fmt.Errorf("read run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("read run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns runs in logical order (seq ASC). A positive limit keeps
// only the most recent runs, still in ascending order.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]ir.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY seq ASC, id COLLATE BINARY ASC`
	args := []any{}
	if limit > 0 {
		query = `SELECT * FROM (SELECT ` + runColumns + ` FROM runs ORDER BY seq DESC LIMIT ?)
			ORDER BY seq ASC, id COLLATE BINARY ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadPasses returns the pass invocations of a run ordered by seq, each with
// its rewrites in the order they were performed.
//
// Returns an empty slice (not nil) if the run has no recorded passes.
func (s *Store) ReadPasses(ctx context.Context, runID string) ([]ir.PassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, iteration, pass_name, changed, hash_before, hash_after
		FROM pass_invocations
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []ir.PassRecord{}
	index := make(map[int64]int)
	for rows.Next() {
		var rec ir.PassRecord
		var changed int
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Iteration, &rec.PassName, &changed, &rec.HashBefore, &rec.HashAfter); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		rec.Changed = changed != 0
		index[rec.ID] = len(passes)
		passes = append(passes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	if len(passes) == 0 {
		return passes, nil
	}

	rwRows, err := s.db.QueryContext(ctx, `
		SELECT r.pass_invocation_id, r.kind, r.node, r.into_node, r.activation, r.output_precision
		FROM rewrites r
		JOIN pass_invocations p ON r.pass_invocation_id = p.id
		WHERE p.run_id = ?
		ORDER BY p.seq ASC, r.ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rewrites: %w", err)
	}
	defer rwRows.Close()

	for rwRows.Next() {
		var passID int64
		rw, err := scanRewrite(rwRows, &passID)
		if err != nil {
			return nil, err
		}
		i := index[passID]
		passes[i].Rewrites = append(passes[i].Rewrites, rw)
	}
	if err := rwRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rewrites: %w", err)
	}
	return passes, nil
}

// NodeRewrite is a rewrite together with the run and pass that performed it.
type NodeRewrite struct {
	RunID    string
	RunSeq   int64
	PassSeq  int64
	PassName string
	Rewrite  ir.RewriteRecord
}

// RewritesForNode returns every journaled rewrite that touched the named
// node, either as the rewritten node or as the fusion target, ordered by run
// seq then pass seq.
func (s *Store) RewritesForNode(ctx context.Context, node string) ([]NodeRewrite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.seq, p.seq, p.pass_name,
		       r.pass_invocation_id, r.kind, r.node, r.into_node, r.activation, r.output_precision
		FROM rewrites r
		JOIN pass_invocations p ON r.pass_invocation_id = p.id
		JOIN runs u ON p.run_id = u.id
		WHERE r.node = ? OR r.into_node = ?
		ORDER BY u.seq ASC, p.seq ASC, r.ordinal ASC
	`, node, node)
	if err != nil {
		return nil, fmt.Errorf("query node rewrites: %w", err)
	}
	defer rows.Close()

	out := []NodeRewrite{}
	for rows.Next() {
		var nr NodeRewrite
		var passID int64
		var precision sql.NullString
		if err := rows.Scan(
			&nr.RunID, &nr.RunSeq, &nr.PassSeq, &nr.PassName,
			&passID, &nr.Rewrite.Kind, &nr.Rewrite.Node, &nr.Rewrite.Into, &nr.Rewrite.Activation, &precision,
		); err != nil {
			return nil, fmt.Errorf("scan node rewrite: %w", err)
		}
		if nr.Rewrite.Precision, err = unmarshalPrecision(precision); err != nil {
			return nil, err
		}
		out = append(out, nr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node rewrites: %w", err)
	}
	return out, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.RunRecord, error) {
	var run ir.RunRecord
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.GraphName,
		&run.Status,
		&run.Error,
		&run.GraphHashBefore,
		&run.GraphHashAfter,
		&run.ToolVersion,
		&run.IRVersion,
	)
	return run, err
}

func scanRewrite(row scanner, passID *int64) (ir.RewriteRecord, error) {
	var rw ir.RewriteRecord
	var precision sql.NullString
	if err := row.Scan(passID, &rw.Kind, &rw.Node, &rw.Into, &rw.Activation, &precision); err != nil {
		return ir.RewriteRecord{}, fmt.Errorf("scan rewrite: %w", err)
	}
	p, err := unmarshalPrecision(precision)
	if err != nil {
		return ir.RewriteRecord{}, err
	}
	rw.Precision = p
	return rw, nil
}
