package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/actfuse/internal/ir"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// BeginRun inserts a run record and assigns its logical sequence number,
// one greater than the highest seq in the journal.
//
// The record's Seq field is ignored. Returns the assigned seq.
func (s *Store) BeginRun(ctx context.Context, run ir.RunRecord) (int64, error) {
	if run.ID == "" {
		return 0, errors.New("begin run: id is required")
	}
	status := run.Status
	if status == "" {
		status = ir.RunStatusRunning
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("begin run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, graph_name, status, error, graph_hash_before, graph_hash_after, tool_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		seq,
		run.GraphName,
		status,
		run.Error,
		run.GraphHashBefore,
		run.GraphHashAfter,
		run.ToolVersion,
		run.IRVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("begin run %s: %w", run.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("begin run: commit: %w", err)
	}
	return seq, nil
}

// RecordPass inserts a pass invocation and its rewrites in one transaction.
// Returns the invocation's row id.
//
// Note: The run referenced by runID must exist (foreign key constraint), and
// (runID, rec.Seq) must be unique.
func (s *Store) RecordPass(ctx context.Context, runID string, rec ir.PassRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record pass: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO pass_invocations
		(run_id, seq, iteration, pass_name, changed, hash_before, hash_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		rec.Seq,
		rec.Iteration,
		rec.PassName,
		boolToInt(rec.Changed),
		rec.HashBefore,
		rec.HashAfter,
	)
	if err != nil {
		return 0, fmt.Errorf("record pass %s (run=%s, seq=%d): %w", rec.PassName, runID, rec.Seq, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record pass: last insert id: %w", err)
	}

	for i, rw := range rec.Rewrites {
		precision, err := marshalPrecision(rw.Precision)
		if err != nil {
			return 0, fmt.Errorf("record pass: rewrite %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rewrites
			(pass_invocation_id, ordinal, kind, node, into_node, activation, output_precision)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			id,
			i,
			rw.Kind,
			rw.Node,
			rw.Into,
			rw.Activation,
			precision,
		)
		if err != nil {
			return 0, fmt.Errorf("record pass: rewrite %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record pass: commit: %w", err)
	}
	return id, nil
}

// FinishRun sets the final status, output fingerprint and error message of
// a run. Returns ErrRunNotFound if the run does not exist.
func (s *Store) FinishRun(ctx context.Context, runID, status, hashAfter, errMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, graph_hash_after = ?, error = ?
		WHERE id = ?
	`, status, hashAfter, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
