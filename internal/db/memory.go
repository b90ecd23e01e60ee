package db

import (
	"context"
	"sort"
	"sync"

	"github.com/tordrt/salesmetrics/internal/schema"
)

// MemoryTable is an in-memory table: its column names and rows
type MemoryTable struct {
	Columns []string
	Rows    []Record
}

// MemorySource is a Source backed by maps. It is safe for concurrent reads.
type MemorySource struct {
	mu     sync.RWMutex
	tables map[string]MemoryTable
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{tables: make(map[string]MemoryTable)}
}

// Put adds or replaces a table
func (m *MemorySource) Put(name string, columns []string, rows ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = MemoryTable{Columns: columns, Rows: rows}
}

// TableNames returns the stored table names, sorted
func (m *MemorySource) TableNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields implements Source
func (m *MemorySource) Fields(_ context.Context, table string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return nil, &TableNotFoundError{Table: table}
	}
	return append([]string(nil), t.Columns...), nil
}

// Rows implements Source. Columns absent from a stored row read as nil.
func (m *MemorySource) Rows(ctx context.Context, table string, columns []string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return nil, &TableNotFoundError{Table: table}
	}

	records := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := make(Record, len(columns))
		for _, col := range columns {
			rec[col] = row[col]
		}
		records = append(records, rec)
	}
	return records, nil
}

// ExtractSchema implements Source. Stored tables carry no column types, so
// every column reads as an untyped nullable one.
func (m *MemorySource) ExtractSchema(_ context.Context, tables []string) (*schema.Schema, error) {
	if len(tables) == 0 {
		tables = m.TableNames()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &schema.Schema{}
	for _, name := range tables {
		t, ok := m.tables[name]
		if !ok {
			return nil, &TableNotFoundError{Table: name}
		}
		table := schema.Table{Name: name}
		for _, col := range t.Columns {
			table.Columns = append(table.Columns, schema.Column{Name: col, Nullable: true})
		}
		s.Tables = append(s.Tables, table)
	}
	return s, nil
}
