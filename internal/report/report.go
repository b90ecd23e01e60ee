// Package report holds the result tables of a run and their flat tabular form.
package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AnnualRevenue is revenue and order count per year
type AnnualRevenue struct {
	Year    string
	Revenue decimal.Decimal
	Orders  int
}

// ProductRevenue ranks products by revenue
type ProductRevenue struct {
	ProductID   string
	ProductName string
	Category    string
	Revenue     decimal.Decimal
	Orders      int
}

// CustomerRevenue ranks customers by revenue
type CustomerRevenue struct {
	CustomerID  string
	CompanyName string
	Country     string
	Revenue     decimal.Decimal
	Orders      int
}

// EmployeePerformance ranks employees by revenue
type EmployeePerformance struct {
	EmployeeID string
	Name       string
	Title      string
	Revenue    decimal.Decimal
	Orders     int
	OnTimePct  float64
}

// CustomerFrequency ranks customers by order count
type CustomerFrequency struct {
	CustomerID  string
	CompanyName string
	Orders      int
	Revenue     decimal.Decimal
	AvgBasket   decimal.Decimal
}

// ShipperPerformance is delivery performance per carrier
type ShipperPerformance struct {
	ShipperID     string
	CompanyName   string
	Orders        int
	ShippedOrders int
	OnTimePct     float64
	AvgCycleDays  *float64
}

// MonthlyRevenueFreight compares revenue with freight per month
type MonthlyRevenueFreight struct {
	Month   string
	Revenue decimal.Decimal
	Freight decimal.Decimal
	Orders  int
}

// CountryCategoryRevenue is revenue per customer country and product category
type CountryCategoryRevenue struct {
	Country  string
	Category string
	Revenue  decimal.Decimal
	Orders   int
}

// ProductTrend is one row of a trend result set
type ProductTrend struct {
	ProductID   string
	ProductName string
	// MonthlyRevenueSlope is rounded to 2 places
	MonthlyRevenueSlope decimal.Decimal
}

// DiagnosticEntry summarizes excluded rows of one kind
type DiagnosticEntry struct {
	Kind    string
	Entity  string
	Count   int
	Samples []string
}

// Report is the full output of a run
type Report struct {
	RunID     string
	Generated time.Time

	AnnualRevenue      []AnnualRevenue
	TopProducts        []ProductRevenue
	TopCustomers       []CustomerRevenue
	Employees          []EmployeePerformance
	CustomerFrequency  []CustomerFrequency
	Shippers           []ShipperPerformance
	MonthlyTrend       []MonthlyRevenueFreight
	CountryCategory    []CountryCategoryRevenue
	DecliningProducts  []ProductTrend
	IncreasingProducts []ProductTrend

	Diagnostics []DiagnosticEntry
}

// Table is a named grid of already-formatted cells
type Table struct {
	Name    string
	Title   string
	Columns []string
	Rows    [][]string
}

// Tables renders every result set in a fixed order, diagnostics last
func (r *Report) Tables() []Table {
	tables := []Table{
		{Name: "annual_revenue", Title: "Annual revenue", Columns: []string{"year", "revenue", "orders"}},
		{Name: "top_products", Title: "Top products by revenue", Columns: []string{"product_id", "product_name", "category", "revenue", "orders"}},
		{Name: "top_customers", Title: "Top customers by revenue", Columns: []string{"customer_id", "company_name", "country", "revenue", "orders"}},
		{Name: "employee_performance", Title: "Employee performance", Columns: []string{"employee_id", "name", "title", "revenue", "orders", "on_time_pct"}},
		{Name: "customer_frequency", Title: "Customer frequency", Columns: []string{"customer_id", "company_name", "orders", "revenue", "avg_basket"}},
		{Name: "shipper_performance", Title: "Shipper delivery performance", Columns: []string{"shipper_id", "company_name", "orders", "shipped_orders", "on_time_pct", "avg_cycle_days"}},
		{Name: "monthly_revenue_freight", Title: "Monthly revenue vs freight", Columns: []string{"month", "revenue", "freight", "orders"}},
		{Name: "country_category_revenue", Title: "Revenue by country and category", Columns: []string{"country", "category", "revenue", "orders"}},
		{Name: "declining_products", Title: "Declining products", Columns: []string{"product_id", "product_name", "monthly_revenue_slope"}},
		{Name: "increasing_products", Title: "Increasing products", Columns: []string{"product_id", "product_name", "monthly_revenue_slope"}},
		{Name: "diagnostics", Title: "Run diagnostics", Columns: []string{"kind", "entity", "count", "samples"}},
	}

	for _, a := range r.AnnualRevenue {
		tables[0].Rows = append(tables[0].Rows, []string{a.Year, money(a.Revenue), itoa(a.Orders)})
	}
	for _, p := range r.TopProducts {
		tables[1].Rows = append(tables[1].Rows, []string{p.ProductID, p.ProductName, p.Category, money(p.Revenue), itoa(p.Orders)})
	}
	for _, c := range r.TopCustomers {
		tables[2].Rows = append(tables[2].Rows, []string{c.CustomerID, c.CompanyName, c.Country, money(c.Revenue), itoa(c.Orders)})
	}
	for _, e := range r.Employees {
		tables[3].Rows = append(tables[3].Rows, []string{e.EmployeeID, e.Name, e.Title, money(e.Revenue), itoa(e.Orders), pct(e.OnTimePct)})
	}
	for _, c := range r.CustomerFrequency {
		tables[4].Rows = append(tables[4].Rows, []string{c.CustomerID, c.CompanyName, itoa(c.Orders), money(c.Revenue), money(c.AvgBasket)})
	}
	for _, s := range r.Shippers {
		cycle := ""
		if s.AvgCycleDays != nil {
			cycle = strconv.FormatFloat(*s.AvgCycleDays, 'f', 2, 64)
		}
		tables[5].Rows = append(tables[5].Rows, []string{s.ShipperID, s.CompanyName, itoa(s.Orders), itoa(s.ShippedOrders), pct(s.OnTimePct), cycle})
	}
	for _, m := range r.MonthlyTrend {
		tables[6].Rows = append(tables[6].Rows, []string{m.Month, money(m.Revenue), money(m.Freight), itoa(m.Orders)})
	}
	for _, c := range r.CountryCategory {
		tables[7].Rows = append(tables[7].Rows, []string{c.Country, c.Category, money(c.Revenue), itoa(c.Orders)})
	}
	for _, t := range r.DecliningProducts {
		tables[8].Rows = append(tables[8].Rows, []string{t.ProductID, t.ProductName, money(t.MonthlyRevenueSlope)})
	}
	for _, t := range r.IncreasingProducts {
		tables[9].Rows = append(tables[9].Rows, []string{t.ProductID, t.ProductName, money(t.MonthlyRevenueSlope)})
	}
	for _, d := range r.Diagnostics {
		tables[10].Rows = append(tables[10].Rows, []string{d.Kind, d.Entity, itoa(d.Count), strings.Join(d.Samples, " ")})
	}

	return tables
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func pct(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
