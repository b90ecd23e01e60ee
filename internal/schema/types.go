package schema

// Schema is the observed physical layout of a record source
type Schema struct {
	Tables []Table
}

// Table is one physical table as reported by the source
type Table struct {
	Name    string
	Columns []Column
}

// Column is one physical column
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// FieldSet returns the column names of the table, in source order
func (t *Table) FieldSet() []string {
	names := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		names = append(names, col.Name)
	}
	return names
}
