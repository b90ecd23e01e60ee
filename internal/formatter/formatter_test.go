package formatter

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tordrt/salesmetrics/internal/report"
	"github.com/tordrt/salesmetrics/internal/resolve"
	"github.com/tordrt/salesmetrics/internal/schema"
)

func sampleReport() *report.Report {
	cycle := 7.5
	return &report.Report{
		RunID:     "4f1c2d3e-0000-4000-8000-000000000001",
		Generated: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		AnnualRevenue: []report.AnnualRevenue{
			{Year: "2024", Revenue: decimal.RequireFromString("650.5"), Orders: 4},
		},
		TopProducts: []report.ProductRevenue{
			{ProductID: "1", ProductName: "Chai | Tea", Category: "Beverages", Revenue: decimal.NewFromInt(486), Orders: 3},
		},
		Shippers: []report.ShipperPerformance{
			{ShipperID: "1", CompanyName: "Speedy Express", Orders: 2, ShippedOrders: 2, OnTimePct: 50, AvgCycleDays: &cycle},
			{ShipperID: "(unknown)", CompanyName: "(unknown)", Orders: 1},
		},
		DecliningProducts: []report.ProductTrend{
			{ProductID: "2", ProductName: "Chang", MonthlyRevenueSlope: decimal.RequireFromString("-66.5")},
		},
		Diagnostics: []report.DiagnosticEntry{
			{Kind: "invalid_line", Entity: "order_line", Count: 1, Samples: []string{"10251/2"}},
		},
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "RUN 4f1c2d3e-0000-4000-8000-000000000001 (2024-06-01 12:00:00)")
	assert.Contains(t, out, "ANNUAL REVENUE")
	assert.Contains(t, out, "650.50")
	assert.Contains(t, out, "7.50")
	assert.Contains(t, out, "-66.50")
	assert.Contains(t, out, "10251/2")

	// empty tables are still listed
	assert.Contains(t, out, "TOP CUSTOMERS BY REVENUE\n  (no rows)")

	// header and rows share column alignment
	var header, row string
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "  year") {
			header = l
		}
		if strings.HasPrefix(l, "  2024") {
			row = l
		}
	}
	require.NotEmpty(t, header)
	require.NotEmpty(t, row)
	assert.Equal(t, strings.Index(header, "revenue"), strings.Index(row, "650.50"))
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(sampleReport()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Sales Metrics\n"))
	assert.Contains(t, out, "## Annual revenue\n\n| year | revenue | orders |\n| --- | --- | --- |\n| 2024 | 650.50 | 4 |\n")
	assert.Contains(t, out, `| 1 | Chai \| Tea | Beverages | 486.00 | 3 |`)
	assert.Contains(t, out, "| (unknown) | (unknown) | 1 | 0 | 0.00 |  |")
	assert.Contains(t, out, "## Top customers by revenue\n\n_No rows._")
}

func TestXLSXFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXFormatter(&buf).Format(sampleReport()))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()

	sheets := wb.GetSheetList()
	require.Len(t, sheets, len(sampleReport().Tables()))
	assert.Equal(t, "annual_revenue", sheets[0])
	assert.Equal(t, "diagnostics", sheets[len(sheets)-1])

	rows, err := wb.GetRows("shipper_performance")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"shipper_id", "company_name", "orders", "shipped_orders", "on_time_pct", "avg_cycle_days"}, rows[0])
	assert.Equal(t, []string{"1", "Speedy Express", "2", "2", "50.00", "7.50"}, rows[1])

	val, err := wb.GetCellValue("annual_revenue", "B2")
	require.NoError(t, err)
	assert.Equal(t, "650.50", val)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "short", sheetName("short"))
	assert.Len(t, sheetName(strings.Repeat("x", 40)), maxSheetName)
}

func TestMultiFileFormatter(t *testing.T) {
	tests := []struct {
		format string
		files  []string
	}{
		{format: formatText, files: []string{"_overview.txt", "annual_revenue.txt", "diagnostics.txt", "shipper_performance.txt"}},
		{format: formatMarkdown, files: []string{"_overview.md", "top_products.md", "increasing_products.md"}},
		{format: formatXLSX, files: []string{"sales_metrics.xlsx"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			require.NoError(t, NewMultiFileFormatter(dir, tt.format).Format(sampleReport()))

			for _, name := range tt.files {
				assert.FileExists(t, filepath.Join(dir, name))
			}
		})
	}

	dir := t.TempDir()
	require.NoError(t, NewMultiFileFormatter(dir, formatText).Format(sampleReport()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(sampleReport().Tables())+1)

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(overview), "shipper_performance (2 rows)")
}

func TestFormatSchema(t *testing.T) {
	observed := &schema.Schema{Tables: []schema.Table{
		{Name: "categories", Columns: []schema.Column{
			{Name: "category_id", Type: "integer"},
			{Name: "category_name", Type: "text"},
			{Name: "picture", Type: "bytea", Nullable: true},
		}},
		{Name: "shippers", Columns: []schema.Column{
			{Name: "id", Type: "integer"},
			{Name: "name", Type: "text"},
		}},
	}}
	mappings := map[resolve.Entity]resolve.Mapping{
		resolve.Category: {
			Entity: resolve.Category,
			Table:  "categories",
			Fields: map[string]string{resolve.FieldID: "category_id", resolve.FieldName: "category_name"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, FormatSchema(&buf, observed, mappings))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "TABLE categories (entity category)\n"))
	assert.Contains(t, out, "TABLE shippers (unresolved)")
	assert.Regexp(t, `category_name\s+text\s+false\s+name\n`, out)
	assert.Regexp(t, `picture\s+bytea\s+true\s+-\n`, out)

	buf.Reset()
	require.NoError(t, FormatSchema(&buf, nil, nil))
	assert.Empty(t, buf.String())
}

type failingCloser struct{ err error }

func (c failingCloser) Close() error { return c.err }

func TestCloseFile(t *testing.T) {
	closeErr := errors.New("disk full")

	var err error
	closeFile(failingCloser{err: closeErr}, &err)
	assert.ErrorIs(t, err, closeErr)

	writeErr := errors.New("write failed")
	err = writeErr
	closeFile(failingCloser{err: closeErr}, &err)
	assert.Equal(t, writeErr, err, "the first error wins")

	err = nil
	closeFile(failingCloser{}, &err)
	assert.NoError(t, err)
}
