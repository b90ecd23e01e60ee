package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/salesmetrics/internal/schema"
)

// MySQLExtractor reads table layouts and rows from a MySQL database
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// ExtractSchema extracts the column layout for the specified tables.
// If tables is empty, every base table in the schema is extracted.
func (e *MySQLExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
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
func (e *MySQLExtractor) Fields(ctx context.Context, table string) ([]string, error) {
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
func (e *MySQLExtractor) Rows(ctx context.Context, table string, columns []string) ([]Record, error) {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteMySQL(col)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quoteMySQL(table))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	return scanRecords(rows, columns)
}

func quoteMySQL(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// getTableNames returns the list of tables to extract
func (e *MySQLExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
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
func (e *MySQLExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
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
