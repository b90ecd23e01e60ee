// Package trend labels each product's revenue trajectory from its monthly
// series using the endpoint slope: (last − first) / (months − 1).
//
// Only the earliest and latest observed months matter. Intermediate months
// and calendar gaps between observations are ignored.
package trend

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tordrt/salesmetrics/internal/canonical"
	"github.com/tordrt/salesmetrics/internal/metrics"
)

// DefaultLimit caps each ranked result set
const DefaultLimit = 20

// Direction of a product's trajectory
type Direction string

const (
	Increasing Direction = "increasing"
	Declining  Direction = "declining"
	Flat       Direction = "flat"
)

// Classification is the trend of one product
type Classification struct {
	ProductID    string
	Months       int
	FirstMonth   string
	LastMonth    string
	FirstRevenue decimal.Decimal
	LastRevenue  decimal.Decimal
	Slope        decimal.Decimal
	Direction    Direction
}

// Ranked holds the two bounded result sets
type Ranked struct {
	// Declining is ordered by slope ascending (steepest decline first)
	Declining []Classification
	// Increasing is ordered by slope descending (steepest growth first)
	Increasing []Classification
}

// Classify groups the series by product and classifies every product that
// has sales in at least two distinct months. Products with fewer are left
// out; that is expected, not an error. Output is ordered by product id.
func Classify(series []metrics.MonthlyProductRevenue) []Classification {
	byProduct := make(map[string]map[string]decimal.Decimal)
	for _, m := range series {
		months, ok := byProduct[m.ProductID]
		if !ok {
			months = make(map[string]decimal.Decimal)
			byProduct[m.ProductID] = months
		}
		months[m.Month] = months[m.Month].Add(m.Revenue)
	}

	products := make([]string, 0, len(byProduct))
	for id := range byProduct {
		products = append(products, id)
	}
	sort.Slice(products, func(i, j int) bool { return canonical.IDLess(products[i], products[j]) })

	out := make([]Classification, 0, len(products))
	for _, id := range products {
		if c, ok := classifyOne(id, byProduct[id]); ok {
			out = append(out, c)
		}
	}
	return out
}

func classifyOne(productID string, months map[string]decimal.Decimal) (Classification, bool) {
	if len(months) < 2 {
		return Classification{}, false
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	first, last := keys[0], keys[len(keys)-1]
	c := Classification{
		ProductID:    productID,
		Months:       len(keys),
		FirstMonth:   first,
		LastMonth:    last,
		FirstRevenue: months[first],
		LastRevenue:  months[last],
	}
	c.Slope = c.LastRevenue.Sub(c.FirstRevenue).Div(decimal.NewFromInt(int64(c.Months - 1)))

	switch c.Slope.Sign() {
	case -1:
		c.Direction = Declining
	case 1:
		c.Direction = Increasing
	default:
		c.Direction = Flat
	}
	return c, true
}

// Rank splits classifications into declining and increasing sets, each
// ordered by slope and capped at limit (DefaultLimit when limit <= 0).
// Flat products appear in neither.
func Rank(cls []Classification, limit int) Ranked {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var r Ranked
	for _, c := range cls {
		switch c.Direction {
		case Declining:
			r.Declining = append(r.Declining, c)
		case Increasing:
			r.Increasing = append(r.Increasing, c)
		}
	}

	sort.SliceStable(r.Declining, func(i, j int) bool {
		a, b := r.Declining[i], r.Declining[j]
		if !a.Slope.Equal(b.Slope) {
			return a.Slope.LessThan(b.Slope)
		}
		return canonical.IDLess(a.ProductID, b.ProductID)
	})
	sort.SliceStable(r.Increasing, func(i, j int) bool {
		a, b := r.Increasing[i], r.Increasing[j]
		if !a.Slope.Equal(b.Slope) {
			return a.Slope.GreaterThan(b.Slope)
		}
		return canonical.IDLess(a.ProductID, b.ProductID)
	})

	if len(r.Declining) > limit {
		r.Declining = r.Declining[:limit]
	}
	if len(r.Increasing) > limit {
		r.Increasing = r.Increasing[:limit]
	}
	return r
}
