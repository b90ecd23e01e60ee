package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/salesmetrics/internal/report"
)

// MarkdownFormatter formats reports as markdown tables
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the report in markdown format
func (f *MarkdownFormatter) Format(r *report.Report) error {
	_, _ = fmt.Fprintln(f.writer, "# Sales Metrics")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "Run `%s`, generated %s\n\n", r.RunID, r.Generated.Format("2006-01-02 15:04:05"))

	for _, t := range r.Tables() {
		if err := f.FormatTable(t); err != nil {
			return err
		}
	}
	return nil
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(t report.Table) error {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", t.Title)

	if len(t.Rows) == 0 {
		_, _ = fmt.Fprintln(f.writer, "_No rows._")
		_, _ = fmt.Fprintln(f.writer)
		return nil
	}

	_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(t.Columns, " | "))
	sep := make([]string, len(t.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(sep, " | "))

	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = escapeCell(c)
		}
		_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(cells, " | "))
	}
	_, _ = fmt.Fprintln(f.writer)
	return nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
