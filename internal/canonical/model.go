// Package canonical projects raw source rows onto schema-stable entities.
//
// Optional values are pointers: nil means the source had no value (or no
// column at all), never a sentinel that could collide with real data.
package canonical

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Category is a product category
type Category struct {
	ID   string
	Name string
}

// Customer is a buying company
type Customer struct {
	ID          string
	CompanyName string
	Country     *string
	Region      *string
}

// Employee is the salesperson who took an order
type Employee struct {
	ID        string
	FirstName string
	LastName  string
	Title     *string
}

// Name returns "First Last"
func (e Employee) Name() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// Product may reference a category the source does not contain
type Product struct {
	ID         string
	Name       string
	CategoryID string
}

// Shipper is a carrier
type Shipper struct {
	ID          string
	CompanyName string
}

// Order header. Freight is zero when the source has none.
type Order struct {
	ID           string
	CustomerID   string
	EmployeeID   *string
	OrderDate    *time.Time
	RequiredDate *time.Time
	ShippedDate  *time.Time
	ShipVia      *string
	Freight      decimal.Decimal
}

// OrderLine is one product on an order. UnitPrice and Quantity stay nil when
// the source row has no value; the metrics layer rejects such lines.
type OrderLine struct {
	OrderID   string
	ProductID string
	UnitPrice *decimal.Decimal
	Quantity  *decimal.Decimal
	Discount  decimal.Decimal
}

// Key identifies the line in diagnostics
func (l OrderLine) Key() string {
	return l.OrderID + "/" + l.ProductID
}

// Snapshot is the immutable canonical view of one source snapshot
type Snapshot struct {
	Categories map[string]Category
	Customers  map[string]Customer
	Employees  map[string]Employee
	Products   map[string]Product
	Shippers   map[string]Shipper

	// Orders are sorted by ID; Lines by order then product
	Orders []Order
	Lines  []OrderLine
}

// CategoryOf returns the category of a product, if both exist
func (s *Snapshot) CategoryOf(productID string) (Category, bool) {
	p, ok := s.Products[productID]
	if !ok {
		return Category{}, false
	}
	c, ok := s.Categories[p.CategoryID]
	return c, ok
}

// IDLess orders integer identifiers numerically and before any other
// identifier; the rest compare lexically
func IDLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aerr == nil:
		return true
	case berr == nil:
		return false
	}
	return a < b
}

func (s *Snapshot) sort() {
	sort.SliceStable(s.Orders, func(i, j int) bool {
		return IDLess(s.Orders[i].ID, s.Orders[j].ID)
	})
	sort.SliceStable(s.Lines, func(i, j int) bool {
		if s.Lines[i].OrderID != s.Lines[j].OrderID {
			return IDLess(s.Lines[i].OrderID, s.Lines[j].OrderID)
		}
		return IDLess(s.Lines[i].ProductID, s.Lines[j].ProductID)
	})
}
