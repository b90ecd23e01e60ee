package canonical

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/salesmetrics/internal/db"
	"github.com/tordrt/salesmetrics/internal/db/dbtest"
	"github.com/tordrt/salesmetrics/internal/diag"
	"github.com/tordrt/salesmetrics/internal/resolve"
)

func build(t *testing.T, src *db.MemorySource, shards int) (*Snapshot, *diag.Diagnostics) {
	t.Helper()

	ctx := context.Background()
	mappings, err := resolve.DefaultVariants().ResolveAll(ctx, src, resolve.DefaultTableNames())
	require.NoError(t, err)

	d := diag.New()
	snap, err := NewBuilder(src, mappings, d, slog.New(slog.DiscardHandler), shards).Build(ctx)
	require.NoError(t, err)
	return snap, d
}

// withRows appends rows to one fixture table
func withRows(tables []dbtest.Table, name string, rows ...db.Record) []dbtest.Table {
	for i := range tables {
		if tables[i].Name == name {
			tables[i].Rows = append(tables[i].Rows, rows...)
		}
	}
	return tables
}

func TestBuildNorthwind(t *testing.T) {
	for _, naming := range []dbtest.Naming{dbtest.SnakeCase, dbtest.CamelCase} {
		snap, d := build(t, dbtest.Northwind(naming), 1)

		assert.Len(t, snap.Categories, 2)
		assert.Len(t, snap.Customers, 3)
		assert.Len(t, snap.Employees, 2)
		assert.Len(t, snap.Products, 4)
		assert.Len(t, snap.Shippers, 2)
		require.Len(t, snap.Orders, 5)
		assert.Len(t, snap.Lines, 9)
		assert.Empty(t, d.Entries())

		assert.Equal(t, "10248", snap.Orders[0].ID)
		assert.Equal(t, "10252", snap.Orders[4].ID)
		assert.Equal(t, "Nancy Davolio", snap.Employees["1"].Name())
		assert.Equal(t, "United Package", snap.Shippers["2"].CompanyName)

		_, ok := snap.CategoryOf("4")
		assert.False(t, ok, "product 4 references a missing category")
		c, ok := snap.CategoryOf("3")
		require.True(t, ok)
		assert.Equal(t, "Condiments", c.Name)
	}
}

func TestBuildNullHandling(t *testing.T) {
	snap, _ := build(t, dbtest.Northwind(dbtest.SnakeCase), 1)

	nocty := snap.Customers["NOCTY"]
	assert.Nil(t, nocty.Country)
	assert.Nil(t, nocty.Region, "region column is structurally absent")
	require.NotNil(t, snap.Customers["ALFKI"].Country)
	assert.Equal(t, "Germany", *snap.Customers["ALFKI"].Country)

	var unshipped Order
	for _, o := range snap.Orders {
		if o.ID == "10251" {
			unshipped = o
		}
	}
	assert.Nil(t, unshipped.ShippedDate)
	assert.Nil(t, unshipped.ShipVia)
	assert.True(t, unshipped.Freight.IsZero())
	require.NotNil(t, unshipped.RequiredDate)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *unshipped.RequiredDate)

	for _, l := range snap.Lines {
		switch l.Key() {
		case "10249/1":
			assert.True(t, l.Discount.IsZero(), "null discount reads as zero")
		case "10251/2":
			assert.Nil(t, l.UnitPrice)
			require.NotNil(t, l.Quantity)
			assert.True(t, l.Quantity.Equal(decimal.NewFromInt(3)))
		}
	}
}

func TestBuildExcludesUncoercibleRows(t *testing.T) {
	tables := dbtest.NorthwindTables()
	tables = withRows(tables, "orders",
		db.Record{"order_id": int64(10300), "customer_id": "ALFKI", "order_date": "yesterday", "required_date": "2024-05-01"},
		db.Record{"order_id": nil, "customer_id": "ALFKI", "required_date": "2024-05-01"},
		db.Record{"order_id": int64(10301), "customer_id": "ALFKI", "required_date": "2024-05-01", "freight": float32(math.NaN())},
	)
	tables = withRows(tables, "products",
		db.Record{"product_id": 1.5, "product_name": "Half", "category_id": int64(1)},
	)
	tables = withRows(tables, "order_details",
		db.Record{"order_id": int64(10248), "product_id": int64(3), "unit_price": "abc", "quantity": int64(1)},
		db.Record{"order_id": int64(10249), "product_id": int64(3), "unit_price": float32(math.Inf(1)), "quantity": int64(1)},
	)

	snap, d := build(t, dbtest.Load(dbtest.SnakeCase, tables...), 2)

	assert.Len(t, snap.Orders, 5)
	assert.Len(t, snap.Products, 4)
	assert.Len(t, snap.Lines, 9)
	assert.Equal(t, 6, d.Count(diag.DataType))

	byEntity := make(map[string]diag.Entry)
	for _, e := range d.Entries() {
		require.Equal(t, diag.DataType, e.Kind)
		byEntity[e.Entity] = e
	}
	assert.Equal(t, 3, byEntity["order"].Count)
	assert.Contains(t, byEntity["order"].Samples, "10300")
	assert.Contains(t, byEntity["order"].Samples, "10301")
	assert.Equal(t, []string{"#5"}, byEntity["product"].Samples)
	assert.Equal(t, []string{"10248/3", "10249/3"}, byEntity["order_line"].Samples)
}

func TestBuildClampsDiscount(t *testing.T) {
	tables := dbtest.NorthwindTables()
	tables = withRows(tables, "order_details",
		db.Record{"order_id": int64(10252), "product_id": int64(1), "unit_price": 10.0, "quantity": int64(1), "discount": 1.5},
		db.Record{"order_id": int64(10252), "product_id": int64(2), "unit_price": 10.0, "quantity": int64(1), "discount": -0.2},
		db.Record{"order_id": int64(10252), "product_id": int64(3), "unit_price": 10.0, "quantity": int64(1), "discount": "0.05"},
	)

	snap, _ := build(t, dbtest.Load(dbtest.SnakeCase, tables...), 1)

	want := map[string]decimal.Decimal{
		"10252/1": decimal.NewFromInt(1),
		"10252/2": decimal.Zero,
		"10252/3": decimal.RequireFromString("0.05"),
	}
	for _, l := range snap.Lines {
		if w, ok := want[l.Key()]; ok {
			assert.True(t, w.Equal(l.Discount), "%s: want %s got %s", l.Key(), w, l.Discount)
			delete(want, l.Key())
		}
	}
	assert.Empty(t, want)
}

func TestBuildExcludesOrphanLines(t *testing.T) {
	tables := withRows(dbtest.NorthwindTables(), "order_details",
		db.Record{"order_id": int64(99999), "product_id": int64(1), "unit_price": 1.0, "quantity": int64(1)},
		db.Record{"order_id": int64(10248), "product_id": int64(77), "unit_price": 1.0, "quantity": int64(1)},
	)

	snap, d := build(t, dbtest.Load(dbtest.SnakeCase, tables...), 1)

	assert.Len(t, snap.Lines, 9)
	assert.Equal(t, 2, d.Count(diag.OrphanLine))
	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.ElementsMatch(t, []string{"99999/1", "10248/77"}, entries[0].Samples)
}

func TestBuildShardedMatchesSingle(t *testing.T) {
	single, _ := build(t, dbtest.Northwind(dbtest.SnakeCase), 1)
	for _, shards := range []int{2, 3, 16} {
		sharded, _ := build(t, dbtest.Northwind(dbtest.SnakeCase), shards)
		assert.Equal(t, single, sharded, "shards=%d", shards)
	}
}

func TestBuildSourceFailure(t *testing.T) {
	src := dbtest.Northwind(dbtest.SnakeCase)
	mappings, err := resolve.DefaultVariants().ResolveAll(context.Background(), src, resolve.DefaultTableNames())
	require.NoError(t, err)

	m := mappings[resolve.Order]
	m.Table = "missing_orders"
	mappings[resolve.Order] = m

	_, err = NewBuilder(src, mappings, diag.New(), nil, 1).Build(context.Background())
	var notFound *db.TableNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestIDLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"10", "ALFKI", true},
		{"ALFKI", "10", false},
		{"ALFKI", "BONAP", true},
		{"7", "7", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IDLess(tt.a, tt.b), "IDLess(%q, %q)", tt.a, tt.b)
	}
}

func TestToDecimalRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{name: "float32 NaN", in: float32(math.NaN())},
		{name: "float32 +Inf", in: float32(math.Inf(1))},
		{name: "float32 -Inf", in: float32(math.Inf(-1))},
		{name: "float64 NaN", in: math.NaN()},
		{name: "float64 -Inf", in: math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := toDecimal(tt.in)
			assert.ErrorContains(t, err, "non-finite")
		})
	}

	d, err := toDecimal(float32(12.5))
	require.NoError(t, err)
	assert.Equal(t, "12.5", d.String())
}

func TestBuildKeepsFirstRowPerID(t *testing.T) {
	tables := dbtest.NorthwindTables()
	tables = withRows(tables, "orders",
		db.Record{"order_id": int64(10248), "customer_id": "BONAP", "required_date": "2024-02-01", "freight": 99.0},
	)
	tables = withRows(tables, "shippers",
		db.Record{"shipper_id": int64(1), "company_name": "Slow Express"},
	)
	tables = withRows(tables, "customers",
		db.Record{"customer_id": "ALFKI", "company_name": "Alfreds Copy"},
	)

	for _, shards := range []int{1, 3} {
		snap, d := build(t, dbtest.Load(dbtest.SnakeCase, tables...), shards)

		require.Len(t, snap.Orders, 5, "shards=%d", shards)
		assert.Equal(t, "ALFKI", snap.Orders[0].CustomerID)
		assert.Equal(t, "32.38", snap.Orders[0].Freight.String())
		assert.Equal(t, "Speedy Express", snap.Shippers["1"].CompanyName)
		assert.Equal(t, "Alfreds Futterkiste", snap.Customers["ALFKI"].CompanyName)

		assert.Equal(t, 3, d.Count(diag.DuplicateKey))
		byEntity := make(map[string]diag.Entry)
		for _, e := range d.Entries() {
			require.Equal(t, diag.DuplicateKey, e.Kind)
			byEntity[e.Entity] = e
		}
		assert.Equal(t, []string{"10248"}, byEntity["order"].Samples)
		assert.Equal(t, []string{"1"}, byEntity["shipper"].Samples)
		assert.Equal(t, []string{"ALFKI"}, byEntity["customer"].Samples)
	}
}
