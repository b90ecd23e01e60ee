package formatter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tordrt/salesmetrics/internal/report"
)

// sheet names are capped at 31 characters by Excel
const maxSheetName = 31

// XLSXFormatter writes one worksheet per result table
type XLSXFormatter struct {
	writer io.Writer
}

// NewXLSXFormatter creates a new workbook formatter
func NewXLSXFormatter(w io.Writer) *XLSXFormatter {
	return &XLSXFormatter{writer: w}
}

// Format builds the workbook and streams it to the writer
func (f *XLSXFormatter) Format(r *report.Report) error {
	wb, err := Workbook(r)
	if err != nil {
		return err
	}
	defer func() { _ = wb.Close() }()

	if _, err := wb.WriteTo(f.writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Workbook renders the report into an in-memory workbook
func Workbook(r *report.Report) (*excelize.File, error) {
	wb := excelize.NewFile()
	defaultSheet := wb.GetSheetName(0)

	for i, t := range r.Tables() {
		name := sheetName(t.Name)
		if i == 0 {
			if err := wb.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := wb.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		if err := writeSheet(wb, name, t); err != nil {
			return nil, fmt.Errorf("failed to fill sheet %s: %w", name, err)
		}
	}

	wb.SetActiveSheet(0)
	return wb, nil
}

func writeSheet(wb *excelize.File, sheet string, t report.Table) error {
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return nil
}

func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}
