package aggregate

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tordrt/salesmetrics/internal/report"
	"github.com/tordrt/salesmetrics/internal/trend"
)

// Money is rounded to 2 places here, on the way out, and nowhere earlier.

// AnnualRevenue returns revenue and order count per year, oldest first
func (e *Engine) AnnualRevenue(ctx context.Context) ([]report.AnnualRevenue, error) {
	groups, err := e.Aggregate(ctx, Year, ByRevenue)
	if err != nil {
		return nil, err
	}
	out := make([]report.AnnualRevenue, 0, len(groups))
	for _, g := range groups {
		out = append(out, report.AnnualRevenue{Year: g.Key.A, Revenue: g.Revenue.Round(2), Orders: g.Orders})
	}
	return out, nil
}

// TopProducts returns the n products with the highest line revenue
func (e *Engine) TopProducts(ctx context.Context, n int) ([]report.ProductRevenue, error) {
	groups, err := e.Aggregate(ctx, Product, ByRevenue)
	if err != nil {
		return nil, err
	}
	groups = head(groups, n)

	out := make([]report.ProductRevenue, 0, len(groups))
	for _, g := range groups {
		row := report.ProductRevenue{
			ProductID:   g.Key.A,
			ProductName: e.productName(g.Key.A),
			Category:    Unknown,
			Revenue:     g.Revenue.Round(2),
			Orders:      g.Orders,
		}
		if c, ok := e.snap.CategoryOf(g.Key.A); ok {
			row.Category = c.Name
		}
		out = append(out, row)
	}
	return out, nil
}

// TopCustomers returns the n customers with the highest revenue
func (e *Engine) TopCustomers(ctx context.Context, n int) ([]report.CustomerRevenue, error) {
	groups, err := e.Aggregate(ctx, Customer, ByRevenue)
	if err != nil {
		return nil, err
	}
	groups = head(groups, n)

	out := make([]report.CustomerRevenue, 0, len(groups))
	for _, g := range groups {
		row := report.CustomerRevenue{
			CustomerID:  g.Key.A,
			CompanyName: g.Key.A,
			Country:     Unknown,
			Revenue:     g.Revenue.Round(2),
			Orders:      g.Orders,
		}
		if c, ok := e.snap.Customers[g.Key.A]; ok {
			row.CompanyName = c.CompanyName
			if c.Country != nil {
				row.Country = *c.Country
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// EmployeePerformance ranks every employee by revenue
func (e *Engine) EmployeePerformance(ctx context.Context) ([]report.EmployeePerformance, error) {
	groups, err := e.Aggregate(ctx, Employee, ByRevenue)
	if err != nil {
		return nil, err
	}

	out := make([]report.EmployeePerformance, 0, len(groups))
	for _, g := range groups {
		row := report.EmployeePerformance{
			EmployeeID: g.Key.A,
			Name:       g.Key.A,
			Revenue:    g.Revenue.Round(2),
			Orders:     g.Orders,
			OnTimePct:  g.OnTimePct,
		}
		if emp, ok := e.snap.Employees[g.Key.A]; ok {
			row.Name = emp.Name()
			if emp.Title != nil {
				row.Title = *emp.Title
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// CustomerFrequency ranks the n most frequent customers with their basket size
func (e *Engine) CustomerFrequency(ctx context.Context, n int) ([]report.CustomerFrequency, error) {
	groups, err := e.Aggregate(ctx, Customer, ByOrders)
	if err != nil {
		return nil, err
	}
	groups = head(groups, n)

	out := make([]report.CustomerFrequency, 0, len(groups))
	for _, g := range groups {
		row := report.CustomerFrequency{
			CustomerID:  g.Key.A,
			CompanyName: g.Key.A,
			Orders:      g.Orders,
			Revenue:     g.Revenue.Round(2),
		}
		if g.Orders > 0 {
			row.AvgBasket = g.Revenue.Div(decimal.NewFromInt(int64(g.Orders))).Round(2)
		}
		if c, ok := e.snap.Customers[g.Key.A]; ok {
			row.CompanyName = c.CompanyName
		}
		out = append(out, row)
	}
	return out, nil
}

// ShipperPerformance reports delivery performance per carrier, best on-time rate first
func (e *Engine) ShipperPerformance(ctx context.Context) ([]report.ShipperPerformance, error) {
	groups, err := e.Aggregate(ctx, Shipper, ByOnTime)
	if err != nil {
		return nil, err
	}

	out := make([]report.ShipperPerformance, 0, len(groups))
	for _, g := range groups {
		row := report.ShipperPerformance{
			ShipperID:     g.Key.A,
			CompanyName:   g.Key.A,
			Orders:        g.Orders,
			ShippedOrders: g.Shipped,
			OnTimePct:     g.OnTimePct,
			AvgCycleDays:  g.AvgCycleDays,
		}
		if s, ok := e.snap.Shippers[g.Key.A]; ok {
			row.CompanyName = s.CompanyName
		}
		out = append(out, row)
	}
	return out, nil
}

// MonthlyRevenueFreight returns revenue against freight per month, oldest first
func (e *Engine) MonthlyRevenueFreight(ctx context.Context) ([]report.MonthlyRevenueFreight, error) {
	groups, err := e.Aggregate(ctx, Month, ByRevenue)
	if err != nil {
		return nil, err
	}
	out := make([]report.MonthlyRevenueFreight, 0, len(groups))
	for _, g := range groups {
		out = append(out, report.MonthlyRevenueFreight{
			Month:   g.Key.A,
			Revenue: g.Revenue.Round(2),
			Freight: g.Freight.Round(2),
			Orders:  g.Orders,
		})
	}
	return out, nil
}

// CountryCategoryRevenue breaks line revenue down by customer country and
// product category. Unknown countries and orphan categories keep their own bucket.
func (e *Engine) CountryCategoryRevenue(ctx context.Context) ([]report.CountryCategoryRevenue, error) {
	groups, err := e.Aggregate(ctx, CountryCategory, ByRevenue)
	if err != nil {
		return nil, err
	}
	out := make([]report.CountryCategoryRevenue, 0, len(groups))
	for _, g := range groups {
		category := Unknown
		if c, ok := e.snap.Categories[g.Key.B]; ok {
			category = c.Name
		}
		out = append(out, report.CountryCategoryRevenue{
			Country:  g.Key.A,
			Category: category,
			Revenue:  g.Revenue.Round(2),
			Orders:   g.Orders,
		})
	}
	return out, nil
}

// Trends classifies the monthly product series and returns both ranked sets
func (e *Engine) Trends(limit int) (declining, increasing []report.ProductTrend) {
	ranked := trend.Rank(trend.Classify(e.res.Monthly), limit)
	return e.productTrends(ranked.Declining), e.productTrends(ranked.Increasing)
}

func (e *Engine) productTrends(cls []trend.Classification) []report.ProductTrend {
	out := make([]report.ProductTrend, 0, len(cls))
	for _, c := range cls {
		out = append(out, report.ProductTrend{
			ProductID:           c.ProductID,
			ProductName:         e.productName(c.ProductID),
			MonthlyRevenueSlope: c.Slope.Round(2),
		})
	}
	return out
}

func (e *Engine) productName(id string) string {
	if p, ok := e.snap.Products[id]; ok {
		return p.Name
	}
	return id
}

func head(groups []Group, n int) []Group {
	if n > 0 && len(groups) > n {
		return groups[:n]
	}
	return groups
}
