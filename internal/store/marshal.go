package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/actfuse/internal/ir"
)

// marshalPrecision converts a precision to canonical JSON TEXT for storage.
// A nil precision is stored as NULL.
func marshalPrecision(p *ir.Precision) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(ir.PrecisionValue(*p))
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal precision: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalPrecision parses a stored precision. NULL yields nil.
func unmarshalPrecision(data sql.NullString) (*ir.Precision, error) {
	if !data.Valid {
		return nil, nil
	}
	var p ir.Precision
	if err := json.Unmarshal([]byte(data.String), &p); err != nil {
		return nil, fmt.Errorf("unmarshal precision: %w", err)
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
