// Star-schema row builders. Each function reduces a transformed table to the
// (columns, rows) shape a dimension or fact upsert takes. All builders are
// pure and deterministic: distinct-row reductions keep first-seen order.
package load

import (
	"strconv"

	"olistetl/internal/dataset"
	"olistetl/internal/storage"
)

// dateKeyLayout is the text form of dimension dates. Dates travel as strings
// so every backend stores and compares them identically.
const dateKeyLayout = "2006-01-02"

// TimeColumns is the dim_time column order.
var TimeColumns = []string{
	"order_date", "order_year", "order_month", "order_quarter",
	"order_day_of_week", "order_day_name",
}

// TimeRows derives the distinct purchase dates from orders with their
// calendar attributes. Weekdays are numbered Monday=0.
func TimeRows(orders *dataset.Table) [][]any {
	var rows [][]any
	seen := make(map[string]bool)
	for i := 0; i < orders.NumRows(); i++ {
		ts, ok := orders.TimeAt(i, "order_purchase_timestamp")
		if !ok {
			continue
		}
		key := ts.Format(dateKeyLayout)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, []any{
			key,
			int64(ts.Year()),
			int64(ts.Month()),
			int64((int(ts.Month())-1)/3 + 1),
			int64((int(ts.Weekday()) + 6) % 7),
			ts.Weekday().String(),
		})
	}
	return rows
}

// CustomerColumns is the dim_customers column order.
var CustomerColumns = []string{
	"customer_id", "customer_unique_id", "customer_state", "customer_city",
	"is_recurring_customer", "total_orders",
}

// CustomerRows maps the classified customers table to dimension rows.
// Recurrence defaults apply when the classifier did not run.
func CustomerRows(customers *dataset.Table) [][]any {
	rows := make([][]any, 0, customers.NumRows())
	for i := 0; i < customers.NumRows(); i++ {
		recurring := false
		if b, ok := customers.BoolAt(i, "is_recurring_customer"); ok {
			recurring = b
		}
		var total int64
		if n, ok := customers.IntAt(i, "total_orders"); ok {
			total = n
		}
		rows = append(rows, []any{
			customers.Value(i, "customer_id"),
			customers.Value(i, "customer_unique_id"),
			customers.Value(i, "customer_state"),
			customers.Value(i, "customer_city"),
			recurring,
			total,
		})
	}
	return rows
}

// ProductColumns is the dim_products column order.
var ProductColumns = []string{
	"product_id", "product_category_name", "product_category_name_english",
	"product_weight_g", "product_length_cm", "product_height_cm", "product_width_cm",
}

// ProductRows maps the enriched products table to dimension rows.
func ProductRows(products *dataset.Table) [][]any {
	return selectRows(products, ProductColumns)
}

// SellerColumns is the dim_sellers column order.
var SellerColumns = []string{"seller_id", "seller_state", "seller_city"}

// SellerRows maps the sellers table to dimension rows.
func SellerRows(sellers *dataset.Table) [][]any {
	return selectRows(sellers, SellerColumns)
}

// GeographyColumns is the dim_geography column order.
var GeographyColumns = []string{"state", "city", "zip_code_prefix"}

// GeographyRows combines customer and seller locations into distinct
// (state, city, zip) rows. A missing zip prefix becomes 0 so the row still
// participates in the dimension's unique key.
func GeographyRows(customers, sellers *dataset.Table) [][]any {
	var rows [][]any
	seen := make(map[string]bool)

	add := func(t *dataset.Table, stateCol, cityCol, zipCol string) {
		if t == nil {
			return
		}
		for i := 0; i < t.NumRows(); i++ {
			state, _ := t.StringAt(i, stateCol)
			city, _ := t.StringAt(i, cityCol)
			var zip int64
			if z, ok := t.IntAt(i, zipCol); ok {
				zip = z
			}
			key := storage.CompositeKey(state, city, formatInt(zip))
			if seen[key] {
				continue
			}
			seen[key] = true
			rows = append(rows, []any{nilIfEmpty(state), nilIfEmpty(city), zip})
		}
	}
	add(customers, "customer_state", "customer_city", "customer_zip_code_prefix")
	add(sellers, "seller_state", "seller_city", "seller_zip_code_prefix")
	return rows
}

// FactColumns is the fact_orders column order.
var FactColumns = []string{
	"order_id", "time_id", "customer_key", "product_key", "seller_key", "geography_key",
	"order_status", "order_items_count", "order_total_value",
	"order_items_total_price", "order_items_total_freight",
	"delivery_time_days", "delivery_delay_days",
	"total_payment_value", "payment_types", "max_installments",
	"avg_review_score", "has_review_comment",
}

// DimKeys carries the natural-key lookups the fact load resolves surrogate
// keys through. Nil maps leave the corresponding foreign key null.
type DimKeys struct {
	Time      map[string]int64 // order_date text -> time_id
	Customer  map[string]int64 // customer_id -> customer_key
	Product   map[string]int64 // product_id -> product_key
	Seller    map[string]int64 // seller_id -> seller_key
	Geography map[string]int64 // state+city composite -> geography_key
}

// FactRows maps the fact table to warehouse rows, resolving dimension keys.
// Rows with no resolvable key keep a null foreign key; measures load as-is.
func FactRows(fact *dataset.Table, keys DimKeys) [][]any {
	rows := make([][]any, 0, fact.NumRows())
	for i := 0; i < fact.NumRows(); i++ {
		var timeID any
		if ts, ok := fact.TimeAt(i, "order_purchase_timestamp"); ok {
			timeID = lookup(keys.Time, ts.Format(dateKeyLayout))
		}
		var geoID any
		if state, ok := fact.StringAt(i, "customer_state"); ok {
			if city, ok := fact.StringAt(i, "customer_city"); ok {
				geoID = lookup(keys.Geography, storage.CompositeKey(state, city))
			}
		}
		row := []any{
			fact.Value(i, "order_id"),
			timeID,
			lookupCol(fact, i, "customer_id", keys.Customer),
			lookupCol(fact, i, "main_product_id", keys.Product),
			lookupCol(fact, i, "main_seller_id", keys.Seller),
			geoID,
		}
		for _, col := range FactColumns[6:] {
			row = append(row, fact.Value(i, col))
		}
		rows = append(rows, row)
	}
	return rows
}

// selectRows projects the named columns into rows, null-filling columns the
// table does not carry.
func selectRows(t *dataset.Table, cols []string) [][]any {
	rows := make([][]any, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = t.Value(i, c)
		}
		rows = append(rows, row)
	}
	return rows
}

// lookup returns the mapped id or nil.
func lookup(m map[string]int64, key string) any {
	if id, ok := m[key]; ok {
		return id
	}
	return nil
}

// lookupCol resolves a table cell through a key map, nil on any miss.
func lookupCol(t *dataset.Table, row int, col string, m map[string]int64) any {
	s, ok := t.StringAt(row, col)
	if !ok {
		return nil
	}
	return lookup(m, s)
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
