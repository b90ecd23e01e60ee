// Package dbtest provides small Northwind-shaped in-memory sources for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tordrt/salesmetrics/internal/db"
)

// Naming selects the column spelling of a fixture
type Naming int

const (
	SnakeCase Naming = iota
	CamelCase
)

var camel = map[string]string{
	"category_id":   "categoryID",
	"category_name": "categoryName",
	"customer_id":   "customerID",
	"company_name":  "companyName",
	"employee_id":   "employeeID",
	"first_name":    "firstName",
	"last_name":     "lastName",
	"product_id":    "productID",
	"product_name":  "productName",
	"shipper_id":    "shipperID",
	"order_id":      "orderID",
	"order_date":    "orderDate",
	"required_date": "requireddate",
	"shipped_date":  "shippedDate",
	"ship_via":      "shipVia",
	"unit_price":    "unitPrice",
}

// Table is fixture data written with snake_case column names
type Table struct {
	Name    string
	Columns []string
	Rows    []db.Record
}

// Load stores tables in a new source, renaming columns for the naming style
func Load(naming Naming, tables ...Table) *db.MemorySource {
	src := db.NewMemorySource()
	for _, t := range tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = rename(naming, c)
		}
		rows := make([]db.Record, len(t.Rows))
		for i, r := range t.Rows {
			rec := make(db.Record, len(r))
			for k, v := range r {
				rec[rename(naming, k)] = v
			}
			rows[i] = rec
		}
		src.Put(t.Name, cols, rows...)
	}
	return src
}

// Seed creates the tables in a SQLite database with untyped columns and
// inserts the rows, renaming columns for the naming style
func Seed(ctx context.Context, conn *sql.DB, naming Naming, tables ...Table) error {
	for _, t := range tables {
		cols := make([]string, len(t.Columns))
		marks := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = `"` + rename(naming, c) + `"`
			marks[i] = "?"
		}

		create := fmt.Sprintf(`CREATE TABLE "%s" (%s)`, t.Name, strings.Join(cols, ", "))
		if _, err := conn.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.Name, err)
		}

		insert := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
			t.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))
		for _, r := range t.Rows {
			args := make([]any, len(t.Columns))
			for i, c := range t.Columns {
				args[i] = r[c]
			}
			if _, err := conn.ExecContext(ctx, insert, args...); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func rename(naming Naming, col string) string {
	if naming == CamelCase {
		if c, ok := camel[col]; ok {
			return c
		}
	}
	return col
}

// Northwind returns the standard fixture:
//
//	order  customer  shipped     required    lines                       revenue
//	10248  ALFKI     2024-01-10  2024-01-20  Chai 18×10, Chang 19×5 −10%  265.50
//	10249  BONAP     2024-01-30  2024-01-30  Chai 18×2, Aniseed 10×3       66.00
//	10250  ALFKI     2024-03-12  2024-03-10  Chai 18×20 −25%, Chang 19×1  289.00
//	10251  NOCTY     -           2024-04-01  Orphan 5×4, Aniseed 10×1,     30.00
//	                                         Chang without price (invalid)
//	10252  BONAP     2025-02-03  2025-02-15  no lines                       0.00
//
// NOCTY has no country; the "Orphan" product references a missing category.
// No customer table carries a region column.
func Northwind(naming Naming) *db.MemorySource {
	return Load(naming, NorthwindTables()...)
}

// NorthwindTables returns the fixture tables so tests can alter them
func NorthwindTables() []Table {
	return []Table{
		{
			Name:    "categories",
			Columns: []string{"category_id", "category_name"},
			Rows: []db.Record{
				{"category_id": int64(1), "category_name": "Beverages"},
				{"category_id": int64(2), "category_name": "Condiments"},
			},
		},
		{
			Name:    "customers",
			Columns: []string{"customer_id", "company_name", "country"},
			Rows: []db.Record{
				{"customer_id": "ALFKI", "company_name": "Alfreds Futterkiste", "country": "Germany"},
				{"customer_id": "BONAP", "company_name": "Bon app'", "country": "France"},
				{"customer_id": "NOCTY", "company_name": "Nowhere Trading", "country": nil},
			},
		},
		{
			Name:    "employees",
			Columns: []string{"employee_id", "first_name", "last_name", "title"},
			Rows: []db.Record{
				{"employee_id": int64(1), "first_name": "Nancy", "last_name": "Davolio", "title": "Sales Representative"},
				{"employee_id": int64(2), "first_name": "Andrew", "last_name": "Fuller", "title": "Vice President, Sales"},
			},
		},
		{
			Name:    "products",
			Columns: []string{"product_id", "product_name", "category_id"},
			Rows: []db.Record{
				{"product_id": int64(1), "product_name": "Chai", "category_id": int64(1)},
				{"product_id": int64(2), "product_name": "Chang", "category_id": int64(1)},
				{"product_id": int64(3), "product_name": "Aniseed Syrup", "category_id": int64(2)},
				{"product_id": int64(4), "product_name": "Orphan", "category_id": int64(99)},
			},
		},
		{
			Name:    "shippers",
			Columns: []string{"shipper_id", "company_name"},
			Rows: []db.Record{
				{"shipper_id": int64(1), "company_name": "Speedy Express"},
				{"shipper_id": int64(2), "company_name": "United Package"},
			},
		},
		{
			Name: "orders",
			Columns: []string{"order_id", "customer_id", "employee_id", "order_date",
				"required_date", "shipped_date", "ship_via", "freight"},
			Rows: []db.Record{
				order(10248, "ALFKI", 1, "2024-01-05", "2024-01-20", "2024-01-10", 1, 32.38),
				order(10249, "BONAP", 2, "2024-01-15", "2024-01-30", "2024-01-30", 2, 11.61),
				order(10250, "ALFKI", 1, "2024-03-02", "2024-03-10", "2024-03-12", 1, 65.83),
				{"order_id": int64(10251), "customer_id": "NOCTY", "employee_id": int64(2),
					"order_date": "2024-03-20", "required_date": "2024-04-01"},
				order(10252, "BONAP", 1, "2025-02-01", "2025-02-15", "2025-02-03", 2, 51.30),
			},
		},
		{
			Name:    "order_details",
			Columns: []string{"order_id", "product_id", "unit_price", "quantity", "discount"},
			Rows: []db.Record{
				line(10248, 1, 18, 10, 0),
				line(10248, 2, 19, 5, 0.1),
				{"order_id": int64(10249), "product_id": int64(1), "unit_price": 18.0, "quantity": int64(2)},
				line(10249, 3, 10, 3, 0),
				line(10250, 1, 18, 20, 0.25),
				line(10250, 2, 19, 1, 0),
				line(10251, 4, 5, 4, 0),
				line(10251, 3, 10, 1, 0),
				{"order_id": int64(10251), "product_id": int64(2), "quantity": int64(3), "discount": 0.0},
			},
		},
	}
}

func order(id int64, customer string, employee int64, ordered, required, shipped string, via int64, freight float64) db.Record {
	return db.Record{
		"order_id":      id,
		"customer_id":   customer,
		"employee_id":   employee,
		"order_date":    ordered,
		"required_date": required,
		"shipped_date":  shipped,
		"ship_via":      via,
		"freight":       freight,
	}
}

func line(orderID, productID int64, price float64, qty int64, discount float64) db.Record {
	return db.Record{
		"order_id":   orderID,
		"product_id": productID,
		"unit_price": price,
		"quantity":   qty,
		"discount":   discount,
	}
}
