package storage

import (
	"context"
	"database/sql"
	"time"
)

// QueryNamed runs a read-only query with named parameters and returns the
// result set as an ordered list of column-name keyed rows. TEXT and BLOB
// values come back as strings, timestamps as time.Time when the driver
// detects them.
func (s *Store) QueryNamed(ctx context.Context, query string, args map[string]any) ([]map[string]any, error) {
	named := make([]any, 0, len(args))
	for name, value := range args {
		named = append(named, sql.Named(name, value))
	}

	rows, err := s.db.QueryContext(ctx, query, named...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue converts driver-specific scan types into plain JSON-friendly
// values.
func normalizeValue(v any) any {
	switch value := v.(type) {
	case []byte:
		return string(value)
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
