package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tordrt/salesmetrics/internal/schema"
)

// Record is one raw row keyed by physical column name
type Record map[string]any

// Source is the read-only record source the metrics engine runs over.
// Fields reports the physical column names of a table; Rows returns every
// row of a table restricted to the given physical columns. ExtractSchema
// describes the listed tables (every table when none are listed).
type Source interface {
	Fields(ctx context.Context, table string) ([]string, error)
	Rows(ctx context.Context, table string, columns []string) ([]Record, error)
	ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error)
}

// TableNotFoundError is returned when a source has no table with the requested name
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found in source", e.Table)
}

// scanRecords drains database/sql rows into records, normalizing driver
// byte slices to strings
func scanRecords(rows *sql.Rows, columns []string) ([]Record, error) {
	var records []Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(Record, len(columns))
		for i, col := range columns {
			rec[col] = normalizeValue(values[i])
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC()
	default:
		return v
	}
}
