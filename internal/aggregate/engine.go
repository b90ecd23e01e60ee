// Package aggregate rolls sales records and order lines up along a single
// dimension. Each shard builds a Partial; partials merge by summing raw
// totals, and averages are only computed on the merged result.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tordrt/salesmetrics/internal/canonical"
	"github.com/tordrt/salesmetrics/internal/metrics"
	"github.com/tordrt/salesmetrics/internal/shard"
)

// Unknown labels the bucket of rows whose grouping key is null
const Unknown = "(unknown)"

// Dimension is a grouping key
type Dimension string

const (
	Year            Dimension = "year"
	Month           Dimension = "month"
	Product         Dimension = "product"
	Customer        Dimension = "customer"
	Employee        Dimension = "employee"
	Shipper         Dimension = "shipper"
	CountryCategory Dimension = "country_category"
)

// Temporal dimensions are ordered by period ascending
func (d Dimension) Temporal() bool {
	return d == Year || d == Month
}

// lineGrained dimensions group order lines rather than orders
func (d Dimension) lineGrained() bool {
	return d == Product || d == CountryCategory
}

// Metric selects the ordering of non-temporal results
type Metric string

const (
	ByRevenue Metric = "revenue"
	ByOrders  Metric = "orders"
	ByOnTime  Metric = "on_time"
)

// Key identifies a group. B is only used by CountryCategory (the category id).
type Key struct {
	A, B string
}

// Group is a finalized aggregate. Money is unrounded.
type Group struct {
	Key     Key
	Revenue decimal.Decimal
	Freight decimal.Decimal
	Orders  int
	Shipped int
	// OnTimePct is avg(on_time_flag) × 100 over the group's orders
	OnTimePct float64
	// AvgCycleDays is nil when no order in the group has a cycle time
	AvgCycleDays *float64
}

type fact struct {
	key     Key
	orderID string
	revenue decimal.Decimal
	sale    *metrics.SalesRecord
}

type accumulator struct {
	revenue    decimal.Decimal
	freight    decimal.Decimal
	orders     map[string]struct{}
	onTime     int
	shipped    int
	cycleTotal decimal.Decimal
	cycleCount int
}

// Partial holds the raw totals of one shard
type Partial map[Key]*accumulator

func (p Partial) add(f fact) {
	acc, ok := p[f.key]
	if !ok {
		acc = &accumulator{orders: make(map[string]struct{})}
		p[f.key] = acc
	}
	acc.revenue = acc.revenue.Add(f.revenue)
	acc.orders[f.orderID] = struct{}{}

	if f.sale == nil {
		return
	}
	acc.freight = acc.freight.Add(f.sale.Freight)
	acc.onTime += f.sale.OnTimeFlag()
	acc.shipped += f.sale.ShippedFlag()
	if f.sale.Cycle != nil {
		acc.cycleTotal = acc.cycleTotal.Add(decimal.NewFromInt(int64(*f.sale.Cycle)))
		acc.cycleCount++
	}
}

// Merge folds other into p. Sums and counts add; order sets union.
func (p Partial) Merge(other Partial) {
	for k, src := range other {
		dst, ok := p[k]
		if !ok {
			dst = &accumulator{orders: make(map[string]struct{}, len(src.orders))}
			p[k] = dst
		}
		dst.revenue = dst.revenue.Add(src.revenue)
		dst.freight = dst.freight.Add(src.freight)
		for id := range src.orders {
			dst.orders[id] = struct{}{}
		}
		dst.onTime += src.onTime
		dst.shipped += src.shipped
		dst.cycleTotal = dst.cycleTotal.Add(src.cycleTotal)
		dst.cycleCount += src.cycleCount
	}
}

var nanosPerDay = decimal.NewFromInt(int64(24 * time.Hour))

// Finalize derives averages from merged totals. Groups are unordered.
func (p Partial) Finalize() []Group {
	out := make([]Group, 0, len(p))
	for k, acc := range p {
		g := Group{
			Key:     k,
			Revenue: acc.revenue,
			Freight: acc.freight,
			Orders:  len(acc.orders),
			Shipped: acc.shipped,
		}
		if g.Orders > 0 {
			g.OnTimePct = float64(acc.onTime) / float64(g.Orders) * 100
		}
		if acc.cycleCount > 0 {
			days, _ := acc.cycleTotal.Div(nanosPerDay).Div(decimal.NewFromInt(int64(acc.cycleCount))).Float64()
			g.AvgCycleDays = &days
		}
		out = append(out, g)
	}
	return out
}

// Engine groups the derived layer of one run
type Engine struct {
	snap   *canonical.Snapshot
	res    *metrics.Result
	shards int
	orders map[string]*canonical.Order
}

// NewEngine creates an aggregation engine. shards <= 0 uses GOMAXPROCS.
func NewEngine(snap *canonical.Snapshot, res *metrics.Result, shards int) *Engine {
	orders := make(map[string]*canonical.Order, len(snap.Orders))
	for i := range snap.Orders {
		orders[snap.Orders[i].ID] = &snap.Orders[i]
	}
	return &Engine{snap: snap, res: res, shards: shards, orders: orders}
}

// Aggregate groups by dim. Temporal dimensions come back ascending by period
// with the unknown bucket last; others descending by the chosen metric.
func (e *Engine) Aggregate(ctx context.Context, dim Dimension, by Metric) ([]Group, error) {
	facts, err := e.facts(dim)
	if err != nil {
		return nil, err
	}

	ranges := shard.Split(len(facts), e.shards)
	parts := make([]Partial, len(ranges))
	err = shard.Run(ctx, ranges, func(_ context.Context, idx int, r shard.Range) error {
		p := make(Partial)
		for i := r.Lo; i < r.Hi; i++ {
			p.add(facts[i])
		}
		parts[idx] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by %s: %w", dim, err)
	}

	merged := make(Partial)
	for _, p := range parts {
		merged.Merge(p)
	}

	groups := merged.Finalize()
	if dim.Temporal() {
		sortTemporal(groups)
	} else {
		sortByMetric(groups, by)
	}
	return groups, nil
}

func (e *Engine) facts(dim Dimension) ([]fact, error) {
	if dim.lineGrained() {
		out := make([]fact, 0, len(e.res.Lines))
		for _, l := range e.res.Lines {
			out = append(out, fact{key: e.lineKey(dim, l), orderID: l.OrderID, revenue: l.Revenue})
		}
		return out, nil
	}

	out := make([]fact, 0, len(e.res.Sales))
	for i := range e.res.Sales {
		s := &e.res.Sales[i]
		o, ok := e.orders[s.OrderID]
		if !ok {
			return nil, fmt.Errorf("sales record for unknown order %s", s.OrderID)
		}
		key, err := orderKey(dim, o)
		if err != nil {
			return nil, err
		}
		out = append(out, fact{key: key, orderID: s.OrderID, revenue: s.Revenue, sale: s})
	}
	return out, nil
}

func orderKey(dim Dimension, o *canonical.Order) (Key, error) {
	switch dim {
	case Year:
		if o.OrderDate == nil {
			return Key{A: Unknown}, nil
		}
		return Key{A: metrics.YearKey(*o.OrderDate)}, nil
	case Month:
		if o.OrderDate == nil {
			return Key{A: Unknown}, nil
		}
		return Key{A: metrics.MonthKey(*o.OrderDate)}, nil
	case Customer:
		return Key{A: o.CustomerID}, nil
	case Employee:
		return Key{A: deref(o.EmployeeID)}, nil
	case Shipper:
		return Key{A: deref(o.ShipVia)}, nil
	}
	return Key{}, fmt.Errorf("unsupported dimension %q", dim)
}

func (e *Engine) lineKey(dim Dimension, l metrics.LineSale) Key {
	if dim == Product {
		return Key{A: l.ProductID}
	}

	country := Unknown
	if o, ok := e.orders[l.OrderID]; ok {
		if c, ok := e.snap.Customers[o.CustomerID]; ok && c.Country != nil {
			country = *c.Country
		}
	}
	category := Unknown
	if c, ok := e.snap.CategoryOf(l.ProductID); ok {
		category = c.ID
	}
	return Key{A: country, B: category}
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return Unknown
	}
	return *s
}

func sortTemporal(groups []Group) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Key.A, groups[j].Key.A
		if (a == Unknown) != (b == Unknown) {
			return b == Unknown
		}
		return a < b
	})
}

func sortByMetric(groups []Group, by Metric) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		switch by {
		case ByOrders:
			if a.Orders != b.Orders {
				return a.Orders > b.Orders
			}
		case ByOnTime:
			if a.OnTimePct != b.OnTimePct {
				return a.OnTimePct > b.OnTimePct
			}
			if a.Shipped != b.Shipped {
				return a.Shipped > b.Shipped
			}
		}
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		if a.Key.A != b.Key.A {
			return canonical.IDLess(a.Key.A, b.Key.A)
		}
		return canonical.IDLess(a.Key.B, b.Key.B)
	})
}
