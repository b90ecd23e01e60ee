// Package resolve maps the physical column names of a record source onto the
// canonical field names the metrics engine works with.
//
// Every entity is described by a declarative table: each canonical field lists
// the physical spellings seen across deployments, in priority order. Resolving
// is a lookup against the observed column set; no query code branches on naming.
package resolve

import (
	"fmt"
	"sort"
)

// Entity names a canonical entity
type Entity string

const (
	Category  Entity = "category"
	Customer  Entity = "customer"
	Employee  Entity = "employee"
	Product   Entity = "product"
	Shipper   Entity = "shipper"
	Order     Entity = "order"
	OrderLine Entity = "order_line"
)

// Entities lists every canonical entity in load order
var Entities = []Entity{Category, Customer, Employee, Product, Shipper, Order, OrderLine}

// Canonical field names
const (
	FieldID           = "id"
	FieldName         = "name"
	FieldCompanyName  = "company_name"
	FieldCountry      = "country"
	FieldRegion       = "region"
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldTitle        = "title"
	FieldCategoryID   = "category_id"
	FieldCustomerID   = "customer_id"
	FieldEmployeeID   = "employee_id"
	FieldOrderDate    = "order_date"
	FieldRequiredDate = "required_date"
	FieldShippedDate  = "shipped_date"
	FieldShipVia      = "ship_via"
	FieldFreight      = "freight"
	FieldOrderID      = "order_id"
	FieldProductID    = "product_id"
	FieldUnitPrice    = "unit_price"
	FieldQuantity     = "quantity"
	FieldDiscount     = "discount"
)

// Field describes one canonical field and the physical names it may appear under.
// An Optional field may be structurally absent from the source; it then reads as unset.
type Field struct {
	Canonical  string
	Candidates []string
	Optional   bool
}

// Variants is the per-entity variant table
type Variants struct {
	fields map[Entity][]Field
}

// DefaultVariants returns the built-in variant table covering snake_case and
// camelCase deployments
func DefaultVariants() *Variants {
	return &Variants{fields: map[Entity][]Field{
		Category: {
			{Canonical: FieldID, Candidates: []string{"category_id", "categoryID"}},
			{Canonical: FieldName, Candidates: []string{"category_name", "categoryName"}},
		},
		Customer: {
			{Canonical: FieldID, Candidates: []string{"customer_id", "customerID"}},
			{Canonical: FieldCompanyName, Candidates: []string{"company_name", "companyName"}},
			{Canonical: FieldCountry, Candidates: []string{"country"}, Optional: true},
			{Canonical: FieldRegion, Candidates: []string{"region"}, Optional: true},
		},
		Employee: {
			{Canonical: FieldID, Candidates: []string{"employee_id", "employeeID"}},
			{Canonical: FieldFirstName, Candidates: []string{"first_name", "firstName"}},
			{Canonical: FieldLastName, Candidates: []string{"last_name", "lastName"}},
			{Canonical: FieldTitle, Candidates: []string{"title"}, Optional: true},
		},
		Product: {
			{Canonical: FieldID, Candidates: []string{"product_id", "productID"}},
			{Canonical: FieldName, Candidates: []string{"product_name", "productName"}},
			{Canonical: FieldCategoryID, Candidates: []string{"category_id", "categoryID"}},
		},
		Shipper: {
			{Canonical: FieldID, Candidates: []string{"shipper_id", "shipperID"}},
			{Canonical: FieldCompanyName, Candidates: []string{"company_name", "companyName"}},
		},
		Order: {
			{Canonical: FieldID, Candidates: []string{"order_id", "orderID"}},
			{Canonical: FieldCustomerID, Candidates: []string{"customer_id", "customerID"}},
			{Canonical: FieldEmployeeID, Candidates: []string{"employee_id", "employeeID"}, Optional: true},
			{Canonical: FieldOrderDate, Candidates: []string{"order_date", "orderDate"}, Optional: true},
			{Canonical: FieldRequiredDate, Candidates: []string{"required_date", "requireddate", "requiredate", "requiredDate"}},
			{Canonical: FieldShippedDate, Candidates: []string{"shipped_date", "shippedDate"}, Optional: true},
			{Canonical: FieldShipVia, Candidates: []string{"ship_via", "shipVia"}, Optional: true},
			{Canonical: FieldFreight, Candidates: []string{"freight"}, Optional: true},
		},
		OrderLine: {
			{Canonical: FieldOrderID, Candidates: []string{"order_id", "orderID"}},
			{Canonical: FieldProductID, Candidates: []string{"product_id", "productID"}},
			{Canonical: FieldUnitPrice, Candidates: []string{"unit_price", "unitPrice"}},
			{Canonical: FieldQuantity, Candidates: []string{"quantity"}},
			{Canonical: FieldDiscount, Candidates: []string{"discount"}, Optional: true},
		},
	}}
}

// Fields returns the variant entries of an entity
func (v *Variants) Fields(entity Entity) []Field {
	return v.fields[entity]
}

// Extend appends physical candidates to a canonical field. Extensions are
// tried after the built-in spellings.
func (v *Variants) Extend(entity Entity, canonical string, candidates ...string) error {
	fields, ok := v.fields[entity]
	if !ok {
		return fmt.Errorf("unknown entity %q", entity)
	}
	for i := range fields {
		if fields[i].Canonical != canonical {
			continue
		}
		for _, c := range candidates {
			if !contains(fields[i].Candidates, c) {
				fields[i].Candidates = append(fields[i].Candidates, c)
			}
		}
		return nil
	}
	return fmt.Errorf("entity %q has no canonical field %q", entity, canonical)
}

// TableNames maps each entity to its physical table
type TableNames map[Entity]string

// DefaultTableNames returns the Northwind table names
func DefaultTableNames() TableNames {
	return TableNames{
		Category:  "categories",
		Customer:  "customers",
		Employee:  "employees",
		Product:   "products",
		Shipper:   "shippers",
		Order:     "orders",
		OrderLine: "order_details",
	}
}

// Merge returns a copy with overrides applied; empty overrides are ignored
func (t TableNames) Merge(overrides map[Entity]string) TableNames {
	out := make(TableNames, len(t))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func sortedCopy(list []string) []string {
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}
