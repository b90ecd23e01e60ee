// Package metrics derives per-order sales records and per-product monthly
// revenue from a canonical snapshot.
package metrics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tordrt/salesmetrics/internal/canonical"
)

// Period key layouts. Years are zero-padded to four digits so keys sort
// chronologically as strings.
const (
	YearLayout  = "2006"
	MonthLayout = "2006-01"
)

const day = 24 * time.Hour

var one = decimal.NewFromInt(1)

// SalesRecord holds the derived metrics of one order
type SalesRecord struct {
	OrderID string

	// Revenue is the sum of valid line revenues rounded to 2 places
	Revenue decimal.Decimal
	Freight decimal.Decimal

	OnTime  bool
	Shipped bool

	// Cycle is shipped_date - order_date; nil unless both dates are present
	Cycle *time.Duration

	ValidLines   int
	InvalidLines int
}

// OnTimeFlag is 1 when shipped on or before the required date
func (s SalesRecord) OnTimeFlag() int {
	if s.OnTime {
		return 1
	}
	return 0
}

// ShippedFlag is 1 when the order has a shipped date
func (s SalesRecord) ShippedFlag() int {
	if s.Shipped {
		return 1
	}
	return 0
}

// CycleDays returns the order-to-ship time in fractional days
func (s SalesRecord) CycleDays() (float64, bool) {
	if s.Cycle == nil {
		return 0, false
	}
	return float64(*s.Cycle) / float64(day), true
}

// InvalidLineError reports an order line that cannot contribute revenue.
// Only that line is dropped; its order still gets a SalesRecord.
type InvalidLineError struct {
	OrderID   string
	ProductID string
	Field     string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("order %s line %s: %s is null", e.OrderID, e.ProductID, e.Field)
}

// LineRevenue returns unit_price × quantity × (1 − discount), unrounded
func LineRevenue(l canonical.OrderLine) (decimal.Decimal, error) {
	if l.UnitPrice == nil {
		return decimal.Zero, &InvalidLineError{OrderID: l.OrderID, ProductID: l.ProductID, Field: "unit_price"}
	}
	if l.Quantity == nil {
		return decimal.Zero, &InvalidLineError{OrderID: l.OrderID, ProductID: l.ProductID, Field: "quantity"}
	}
	return l.UnitPrice.Mul(*l.Quantity).Mul(one.Sub(l.Discount)), nil
}

// flags fills the date-derived fields of a record
func flags(o canonical.Order, rec *SalesRecord) {
	rec.Shipped = o.ShippedDate != nil
	rec.OnTime = o.ShippedDate != nil && o.RequiredDate != nil && !o.ShippedDate.After(*o.RequiredDate)
	if o.ShippedDate != nil && o.OrderDate != nil {
		cycle := o.ShippedDate.Sub(*o.OrderDate)
		rec.Cycle = &cycle
	}
}

// YearKey returns the calendar year key of a date
func YearKey(t time.Time) string {
	return t.UTC().Format(YearLayout)
}

// MonthKey returns the calendar month key of a date
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}
