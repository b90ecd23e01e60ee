package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/salesmetrics/internal/schema"
)

// Extractor reads table layouts and rows from a PostgreSQL schema
type Extractor struct {
	client *PostgresClient
	schema string
}

// NewExtractor creates a new PostgreSQL extractor
func NewExtractor(client *PostgresClient, schemaName string) *Extractor {
	return &Extractor{
		client: client,
		schema: schemaName,
	}
}

// ExtractSchema extracts the column layout for the specified tables.
// If tables is empty, every base table in the schema is extracted.
func (e *Extractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	var extractedTables []schema.Table

	tableNames, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	for _, tableName := range tableNames {
		columns, err := e.extractColumns(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, err)
		}
		extractedTables = append(extractedTables, schema.Table{Name: tableName, Columns: columns})
	}

	return &schema.Schema{Tables: extractedTables}, nil
}

// Fields implements Source
func (e *Extractor) Fields(ctx context.Context, table string) ([]string, error) {
	columns, err := e.extractColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, &TableNotFoundError{Table: table}
	}

	t := schema.Table{Name: table, Columns: columns}
	return t.FieldSet(), nil
}

// Rows implements Source
func (e *Extractor) Rows(ctx context.Context, table string, columns []string) ([]Record, error) {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pgx.Identifier{col}.Sanitize()
	}
	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoted, ", "),
		pgx.Identifier{e.schema, table}.Sanitize())

	rows, err := e.client.GetConnection().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		rec := make(Record, len(columns))
		for i, col := range columns {
			rec[col] = pgValue(values[i])
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// pgValue unwraps pgtype values (numeric, date) into plain driver values
func pgValue(v any) any {
	valuer, ok := v.(driver.Valuer)
	if !ok {
		return normalizeValue(v)
	}
	dv, err := valuer.Value()
	if err != nil {
		return v
	}
	return normalizeValue(dv)
}

// getTableNames returns the list of tables to extract
func (e *Extractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// extractColumns extracts column information for a table
func (e *Extractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var nullable string

		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = (nullable == "YES")

		columns = append(columns, col)
	}

	return columns, rows.Err()
}
