package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tordrt/salesmetrics/internal/canonical"
	"github.com/tordrt/salesmetrics/internal/diag"
	"github.com/tordrt/salesmetrics/internal/shard"
)

// LineSale is a valid order line with its unrounded revenue
type LineSale struct {
	OrderID   string
	ProductID string
	Revenue   decimal.Decimal
}

// MonthlyProductRevenue is one product's revenue in one calendar month
type MonthlyProductRevenue struct {
	ProductID string
	Month     string
	Revenue   decimal.Decimal
}

// Result is the per-run derived layer. Every consumer reads revenue from here
// instead of re-deriving it.
type Result struct {
	// Sales has one record per order, in snapshot order
	Sales []SalesRecord
	// Lines holds the valid lines, in snapshot order
	Lines []LineSale
	// Monthly is sorted by product then month
	Monthly []MonthlyProductRevenue

	byOrder map[string]int
}

// Sale returns the record of an order
func (r *Result) Sale(orderID string) (SalesRecord, bool) {
	i, ok := r.byOrder[orderID]
	if !ok {
		return SalesRecord{}, false
	}
	return r.Sales[i], true
}

// Computer derives sales records shard by shard
type Computer struct {
	diag   *diag.Diagnostics
	logger *slog.Logger
	shards int
}

// NewComputer creates a metrics computer. shards <= 0 uses GOMAXPROCS.
func NewComputer(d *diag.Diagnostics, logger *slog.Logger, shards int) *Computer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Computer{diag: d, logger: logger, shards: shards}
}

type monthKey struct {
	product string
	month   string
}

type partial struct {
	sales   []SalesRecord
	lines   []LineSale
	monthly map[monthKey]decimal.Decimal
}

// Compute produces a SalesRecord for every order, including orders without
// lines, and the monthly product revenue series
func (c *Computer) Compute(ctx context.Context, snap *canonical.Snapshot) (*Result, error) {
	linesByOrder := make(map[string][]canonical.OrderLine, len(snap.Orders))
	for _, l := range snap.Lines {
		linesByOrder[l.OrderID] = append(linesByOrder[l.OrderID], l)
	}

	ranges := shard.Split(len(snap.Orders), c.shards)
	parts := make([]partial, len(ranges))
	err := shard.Run(ctx, ranges, func(ctx context.Context, idx int, r shard.Range) error {
		p := partial{
			sales:   make([]SalesRecord, 0, r.Hi-r.Lo),
			monthly: make(map[monthKey]decimal.Decimal),
		}
		for i := r.Lo; i < r.Hi; i++ {
			o := snap.Orders[i]
			rec, lines, err := c.computeOrder(o, linesByOrder[o.ID])
			if err != nil {
				return err
			}
			p.sales = append(p.sales, rec)
			p.lines = append(p.lines, lines...)
			if o.OrderDate == nil {
				continue
			}
			month := MonthKey(*o.OrderDate)
			for _, l := range lines {
				k := monthKey{product: l.ProductID, month: month}
				p.monthly[k] = p.monthly[k].Add(l.Revenue)
			}
		}
		parts[idx] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute order metrics: %w", err)
	}

	return merge(parts), nil
}

func (c *Computer) computeOrder(o canonical.Order, lines []canonical.OrderLine) (SalesRecord, []LineSale, error) {
	rec := SalesRecord{OrderID: o.ID, Freight: o.Freight}
	flags(o, &rec)

	total := decimal.Zero
	valid := make([]LineSale, 0, len(lines))
	for _, l := range lines {
		rev, err := LineRevenue(l)
		if err != nil {
			var ile *InvalidLineError
			if !errors.As(err, &ile) {
				return rec, nil, err
			}
			rec.InvalidLines++
			c.diag.Record(diag.InvalidLine, "order_line", l.Key())
			c.logger.Warn("excluding order line from revenue",
				"order", ile.OrderID, "product", ile.ProductID, "field", ile.Field)
			continue
		}
		total = total.Add(rev)
		valid = append(valid, LineSale{OrderID: l.OrderID, ProductID: l.ProductID, Revenue: rev})
	}
	rec.ValidLines = len(valid)
	rec.Revenue = total.Round(2)
	return rec, valid, nil
}

// merge concatenates shard outputs in shard order and sums monthly partials
func merge(parts []partial) *Result {
	res := &Result{}
	monthly := make(map[monthKey]decimal.Decimal)
	for _, p := range parts {
		res.Sales = append(res.Sales, p.sales...)
		res.Lines = append(res.Lines, p.lines...)
		for k, v := range p.monthly {
			monthly[k] = monthly[k].Add(v)
		}
	}

	res.byOrder = make(map[string]int, len(res.Sales))
	for i, s := range res.Sales {
		res.byOrder[s.OrderID] = i
	}

	res.Monthly = make([]MonthlyProductRevenue, 0, len(monthly))
	for k, v := range monthly {
		res.Monthly = append(res.Monthly, MonthlyProductRevenue{ProductID: k.product, Month: k.month, Revenue: v})
	}
	sort.Slice(res.Monthly, func(i, j int) bool {
		a, b := res.Monthly[i], res.Monthly[j]
		if a.ProductID != b.ProductID {
			return canonical.IDLess(a.ProductID, b.ProductID)
		}
		return a.Month < b.Month
	})
	return res
}
