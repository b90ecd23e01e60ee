package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/tordrt/salesmetrics/internal/report"
	"github.com/tordrt/salesmetrics/internal/resolve"
	"github.com/tordrt/salesmetrics/internal/schema"
)

// TextFormatter writes reports as aligned plain-text tables
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes every result table
func (f *TextFormatter) Format(r *report.Report) error {
	_, _ = fmt.Fprintf(f.writer, "RUN %s (%s)\n\n", r.RunID, r.Generated.Format("2006-01-02 15:04:05"))

	for i, t := range r.Tables() {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer)
		}
		if err := f.FormatTable(t); err != nil {
			return err
		}
	}
	return nil
}

// FormatTable writes a single table
func (f *TextFormatter) FormatTable(t report.Table) error {
	_, _ = fmt.Fprintf(f.writer, "%s\n", strings.ToUpper(t.Title))
	if len(t.Rows) == 0 {
		_, _ = fmt.Fprintln(f.writer, "  (no rows)")
		return nil
	}

	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "  %s\n", strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		_, _ = fmt.Fprintf(tw, "  %s\n", strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// FormatSchema writes every observed table with its columns and the
// canonical field each column resolved to. mappings may be partial when
// resolution failed.
func FormatSchema(w io.Writer, observed *schema.Schema, mappings map[resolve.Entity]resolve.Mapping) error {
	if observed == nil {
		return nil
	}

	byTable := make(map[string]resolve.Mapping, len(mappings))
	for _, m := range mappings {
		byTable[m.Table] = m
	}

	for i, t := range observed.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}

		m, ok := byTable[t.Name]
		if ok {
			_, _ = fmt.Fprintf(w, "TABLE %s (entity %s)\n", t.Name, m.Entity)
		} else {
			_, _ = fmt.Fprintf(w, "TABLE %s (unresolved)\n", t.Name)
		}

		canonicalOf := make(map[string]string, len(m.Fields))
		for canon, col := range m.Fields {
			canonicalOf[col] = canon
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "  column\ttype\tnullable\tcanonical")
		for _, col := range t.Columns {
			_, _ = fmt.Fprintf(tw, "  %s\t%s\t%t\t%s\n",
				col.Name, orDash(col.Type), col.Nullable, orDash(canonicalOf[col.Name]))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
