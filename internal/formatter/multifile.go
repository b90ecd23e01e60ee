package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tordrt/salesmetrics/internal/report"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
	formatXLSX     = "xlsx"
)

// Formats lists the accepted output formats
var Formats = []string{formatText, formatMarkdown, formatXLSX}

// MultiFileFormatter writes each result table to its own file in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"; "xlsx" writes a single workbook
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes _overview plus one file per table
func (f *MultiFileFormatter) Format(r *report.Report) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if f.OutputFormat == formatXLSX {
		return f.writeWorkbook(r)
	}

	tables := r.Tables()
	if err := f.writeOverview(r, tables); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, t := range tables {
		if err := f.writeTableFile(t); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", t.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeWorkbook(r *report.Report) (err error) {
	file, err := os.Create(filepath.Join(f.OutputDir, "sales_metrics.xlsx"))
	if err != nil {
		return err
	}
	defer closeFile(file, &err)

	return NewXLSXFormatter(file).Format(r)
}

// writeOverview lists the tables and their row counts
func (f *MultiFileFormatter) writeOverview(r *report.Report, tables []report.Table) (err error) {
	ext := f.getFileExtension()
	file, err := os.Create(filepath.Join(f.OutputDir, "_overview"+ext))
	if err != nil {
		return err
	}
	defer closeFile(file, &err)

	if f.OutputFormat == formatMarkdown {
		_, _ = fmt.Fprintf(file, "# Sales Metrics Overview\n\n")
		_, _ = fmt.Fprintf(file, "Run `%s`. Each table has a file: `<table_name>%s`\n\n", r.RunID, ext)
		for _, t := range tables {
			_, _ = fmt.Fprintf(file, "- **%s** (%d rows)\n", t.Name, len(t.Rows))
		}
		return nil
	}

	_, _ = fmt.Fprintf(file, "SALES METRICS OVERVIEW\n")
	_, _ = fmt.Fprintf(file, "Run %s. Each table has a file: <table_name>%s\n\n", r.RunID, ext)
	for _, t := range tables {
		_, _ = fmt.Fprintf(file, "%s (%d rows)\n", t.Name, len(t.Rows))
	}
	return nil
}

// writeTableFile writes a single table to its own file
func (f *MultiFileFormatter) writeTableFile(t report.Table) (err error) {
	file, err := os.Create(filepath.Join(f.OutputDir, t.Name+f.getFileExtension()))
	if err != nil {
		return err
	}
	defer closeFile(file, &err)

	if f.OutputFormat == formatMarkdown {
		return NewMarkdownFormatter(file).FormatTable(t)
	}
	return NewTextFormatter(file).FormatTable(t)
}

// closeFile closes a written file and reports the close error unless an
// earlier one is already set
func closeFile(file io.Closer, err *error) {
	if cerr := file.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close file: %w", cerr)
	}
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}
