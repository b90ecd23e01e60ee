package canonical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tordrt/salesmetrics/internal/db"
	"github.com/tordrt/salesmetrics/internal/diag"
	"github.com/tordrt/salesmetrics/internal/resolve"
	"github.com/tordrt/salesmetrics/internal/shard"
)

// RowReader supplies raw rows for a physical table
type RowReader interface {
	Rows(ctx context.Context, table string, columns []string) ([]db.Record, error)
}

// Builder materializes a Snapshot from a source using resolved mappings
type Builder struct {
	src      RowReader
	mappings map[resolve.Entity]resolve.Mapping
	diag     *diag.Diagnostics
	logger   *slog.Logger
	shards   int
}

// NewBuilder creates a view builder. shards <= 0 uses GOMAXPROCS.
func NewBuilder(src RowReader, mappings map[resolve.Entity]resolve.Mapping, d *diag.Diagnostics, logger *slog.Logger, shards int) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		src:      src,
		mappings: mappings,
		diag:     d,
		logger:   logger,
		shards:   shards,
	}
}

// Build reads every entity and returns the canonical snapshot. Rows that fail
// coercion or repeat an earlier identifier are excluded and recorded; source
// failures abort.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Categories: make(map[string]Category),
		Customers:  make(map[string]Customer),
		Employees:  make(map[string]Employee),
		Products:   make(map[string]Product),
		Shippers:   make(map[string]Shipper),
	}

	categories, err := load(ctx, b, resolve.Category, parseCategory)
	if err != nil {
		return nil, err
	}
	for _, c := range unique(b, resolve.Category, categories, func(c Category) string { return c.ID }) {
		snap.Categories[c.ID] = c
	}

	customers, err := load(ctx, b, resolve.Customer, parseCustomer)
	if err != nil {
		return nil, err
	}
	for _, c := range unique(b, resolve.Customer, customers, func(c Customer) string { return c.ID }) {
		snap.Customers[c.ID] = c
	}

	employees, err := load(ctx, b, resolve.Employee, parseEmployee)
	if err != nil {
		return nil, err
	}
	for _, e := range unique(b, resolve.Employee, employees, func(e Employee) string { return e.ID }) {
		snap.Employees[e.ID] = e
	}

	products, err := load(ctx, b, resolve.Product, parseProduct)
	if err != nil {
		return nil, err
	}
	for _, p := range unique(b, resolve.Product, products, func(p Product) string { return p.ID }) {
		snap.Products[p.ID] = p
	}

	shippers, err := load(ctx, b, resolve.Shipper, parseShipper)
	if err != nil {
		return nil, err
	}
	for _, s := range unique(b, resolve.Shipper, shippers, func(s Shipper) string { return s.ID }) {
		snap.Shippers[s.ID] = s
	}

	orders, err := load(ctx, b, resolve.Order, parseOrder)
	if err != nil {
		return nil, err
	}
	snap.Orders = unique(b, resolve.Order, orders, func(o Order) string { return o.ID })

	lines, err := load(ctx, b, resolve.OrderLine, b.parseOrderLine)
	if err != nil {
		return nil, err
	}

	orderIDs := make(map[string]bool, len(snap.Orders))
	for _, o := range snap.Orders {
		orderIDs[o.ID] = true
	}
	snap.Lines = make([]OrderLine, 0, len(lines))
	for _, l := range lines {
		_, productOK := snap.Products[l.ProductID]
		if !orderIDs[l.OrderID] || !productOK {
			b.diag.Record(diag.OrphanLine, string(resolve.OrderLine), l.Key())
			b.logger.Warn("excluding order line with dangling reference",
				"line", l.Key(), "order_found", orderIDs[l.OrderID], "product_found", productOK)
			continue
		}
		snap.Lines = append(snap.Lines, l)
	}

	snap.sort()
	return snap, nil
}

// load reads one entity's rows and parses them shard by shard, preserving
// source order in the result
func load[T any](ctx context.Context, b *Builder, entity resolve.Entity, parse func(*row) (T, error)) ([]T, error) {
	m, ok := b.mappings[entity]
	if !ok {
		return nil, fmt.Errorf("no resolved mapping for %s", entity)
	}

	recs, err := b.src.Rows(ctx, m.Table, m.Columns())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entity, err)
	}

	ranges := shard.Split(len(recs), b.shards)
	parts := make([][]T, len(ranges))
	err = shard.Run(ctx, ranges, func(_ context.Context, idx int, r shard.Range) error {
		out := make([]T, 0, r.Hi-r.Lo)
		for i := r.Lo; i < r.Hi; i++ {
			item, err := parse(newRow(entity, m, recs[i], i))
			if err != nil {
				var dte *DataTypeError
				if !errors.As(err, &dte) {
					return err
				}
				b.exclude(dte)
				continue
			}
			out = append(out, item)
		}
		parts[idx] = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", entity, err)
	}

	var all []T
	for _, p := range parts {
		all = append(all, p...)
	}
	b.logger.Debug("built canonical entity", "entity", entity, "rows", len(recs), "kept", len(all))
	return all, nil
}

// unique keeps the first row per identifier, in source order, and records
// every later row with the same identifier
func unique[T any](b *Builder, entity resolve.Entity, items []T, id func(T) string) []T {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		key := id(item)
		if seen[key] {
			b.diag.Record(diag.DuplicateKey, string(entity), key)
			b.logger.Warn("excluding row with duplicate identifier", "entity", entity, "id", key)
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func (b *Builder) exclude(err *DataTypeError) {
	b.diag.Record(diag.DataType, string(err.Entity), err.Row)
	b.logger.Warn("excluding row",
		"entity", err.Entity, "row", err.Row, "field", err.Field, "error", err.Err)
}

func parseCategory(r *row) (Category, error) {
	var c Category
	var err error
	if c.ID, err = r.id(resolve.FieldID); err != nil {
		return c, err
	}
	r.keyed(c.ID)
	if c.Name, err = r.text(resolve.FieldName); err != nil {
		return c, err
	}
	return c, nil
}

func parseCustomer(r *row) (Customer, error) {
	var c Customer
	var err error
	if c.ID, err = r.id(resolve.FieldID); err != nil {
		return c, err
	}
	r.keyed(c.ID)
	if c.CompanyName, err = r.text(resolve.FieldCompanyName); err != nil {
		return c, err
	}
	if c.Country, err = r.optText(resolve.FieldCountry); err != nil {
		return c, err
	}
	if c.Region, err = r.optText(resolve.FieldRegion); err != nil {
		return c, err
	}
	return c, nil
}

func parseEmployee(r *row) (Employee, error) {
	var e Employee
	var err error
	if e.ID, err = r.id(resolve.FieldID); err != nil {
		return e, err
	}
	r.keyed(e.ID)
	if e.FirstName, err = r.text(resolve.FieldFirstName); err != nil {
		return e, err
	}
	if e.LastName, err = r.text(resolve.FieldLastName); err != nil {
		return e, err
	}
	if e.Title, err = r.optText(resolve.FieldTitle); err != nil {
		return e, err
	}
	return e, nil
}

func parseProduct(r *row) (Product, error) {
	var p Product
	var err error
	if p.ID, err = r.id(resolve.FieldID); err != nil {
		return p, err
	}
	r.keyed(p.ID)
	if p.Name, err = r.text(resolve.FieldName); err != nil {
		return p, err
	}
	if p.CategoryID, err = r.id(resolve.FieldCategoryID); err != nil {
		return p, err
	}
	return p, nil
}

func parseShipper(r *row) (Shipper, error) {
	var s Shipper
	var err error
	if s.ID, err = r.id(resolve.FieldID); err != nil {
		return s, err
	}
	r.keyed(s.ID)
	if s.CompanyName, err = r.text(resolve.FieldCompanyName); err != nil {
		return s, err
	}
	return s, nil
}

func parseOrder(r *row) (Order, error) {
	var o Order
	var err error
	if o.ID, err = r.id(resolve.FieldID); err != nil {
		return o, err
	}
	r.keyed(o.ID)
	if o.CustomerID, err = r.id(resolve.FieldCustomerID); err != nil {
		return o, err
	}
	if o.EmployeeID, err = r.optID(resolve.FieldEmployeeID); err != nil {
		return o, err
	}
	if o.OrderDate, err = r.optTime(resolve.FieldOrderDate); err != nil {
		return o, err
	}
	if o.RequiredDate, err = r.optTime(resolve.FieldRequiredDate); err != nil {
		return o, err
	}
	if o.ShippedDate, err = r.optTime(resolve.FieldShippedDate); err != nil {
		return o, err
	}
	if o.ShipVia, err = r.optID(resolve.FieldShipVia); err != nil {
		return o, err
	}
	freight, err := r.optDecimal(resolve.FieldFreight)
	if err != nil {
		return o, err
	}
	if freight != nil {
		o.Freight = *freight
	}
	return o, nil
}

func (b *Builder) parseOrderLine(r *row) (OrderLine, error) {
	var l OrderLine
	var err error
	if l.OrderID, err = r.id(resolve.FieldOrderID); err != nil {
		return l, err
	}
	if l.ProductID, err = r.id(resolve.FieldProductID); err != nil {
		return l, err
	}
	r.keyed(l.Key())
	if l.UnitPrice, err = r.optDecimal(resolve.FieldUnitPrice); err != nil {
		return l, err
	}
	if l.Quantity, err = r.optDecimal(resolve.FieldQuantity); err != nil {
		return l, err
	}
	discount, err := r.optDecimal(resolve.FieldDiscount)
	if err != nil {
		return l, err
	}
	if discount != nil {
		l.Discount = clampDiscount(*discount)
		if !l.Discount.Equal(*discount) {
			b.logger.Warn("discount outside [0,1] clamped",
				"line", l.Key(), "discount", discount.String(), "clamped", l.Discount.String())
		}
	}
	return l, nil
}

var one = decimal.NewFromInt(1)

func clampDiscount(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}
