// Package schema is the registry of the nine canonical marketplace datasets:
// expected columns and their extract-time types, the CSV file each dataset
// ships in, the date-like columns the transform stage coerces, and the
// primary keys the staging loader dedups on.
//
// The registry is data, not behavior; extraction validates against it and
// the transform core drives its date conversion from it, but nothing here
// re-validates tables mid-pipeline.
package schema

import "olistetl/internal/dataset"

// Canonical dataset names.
const (
	Customers           = "customers"
	Geolocation         = "geolocation"
	OrderItems          = "order_items"
	OrderPayments       = "order_payments"
	OrderReviews        = "order_reviews"
	Orders              = "orders"
	Products            = "products"
	Sellers             = "sellers"
	CategoryTranslation = "category_translation"
)

// Names lists the canonical dataset names in extraction order.
var Names = []string{
	Customers, Geolocation, OrderItems, OrderPayments, OrderReviews,
	Orders, Products, Sellers, CategoryTranslation,
}

// ColumnSpec describes one expected column and its extract-time type.
// Date-like columns are typed String here; the transform stage owns the
// lenient conversion to time values.
type ColumnSpec struct {
	Name string
	Type dataset.Type
}

// Spec describes one dataset's expected shape.
type Spec struct {
	Columns []ColumnSpec
}

// ColumnNames returns the expected column names in order.
func (s Spec) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// TypeOf returns the expected type for a column, defaulting to String for
// columns the Spec does not list (forward compatibility for extras).
func (s Spec) TypeOf(name string) dataset.Type {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Type
		}
	}
	return dataset.String
}

// Specs maps dataset name to its expected shape. Mirrors the upstream CSV
// extracts column for column, including the dataset's own misspellings
// (product_name_lenght et al.).
var Specs = map[string]Spec{
	Customers: {Columns: []ColumnSpec{
		{"customer_id", dataset.String},
		{"customer_unique_id", dataset.String},
		{"customer_zip_code_prefix", dataset.Int},
		{"customer_city", dataset.String},
		{"customer_state", dataset.String},
	}},
	Geolocation: {Columns: []ColumnSpec{
		{"geolocation_zip_code_prefix", dataset.Int},
		{"geolocation_lat", dataset.Float},
		{"geolocation_lng", dataset.Float},
		{"geolocation_city", dataset.String},
		{"geolocation_state", dataset.String},
	}},
	OrderItems: {Columns: []ColumnSpec{
		{"order_id", dataset.String},
		{"order_item_id", dataset.Int},
		{"product_id", dataset.String},
		{"seller_id", dataset.String},
		{"shipping_limit_date", dataset.String},
		{"price", dataset.Float},
		{"freight_value", dataset.Float},
	}},
	OrderPayments: {Columns: []ColumnSpec{
		{"order_id", dataset.String},
		{"payment_sequential", dataset.Int},
		{"payment_type", dataset.String},
		{"payment_installments", dataset.Int},
		{"payment_value", dataset.Float},
	}},
	OrderReviews: {Columns: []ColumnSpec{
		{"review_id", dataset.String},
		{"order_id", dataset.String},
		{"review_score", dataset.Int},
		{"review_comment_title", dataset.String},
		{"review_comment_message", dataset.String},
		{"review_creation_date", dataset.String},
		{"review_answer_timestamp", dataset.String},
	}},
	Orders: {Columns: []ColumnSpec{
		{"order_id", dataset.String},
		{"customer_id", dataset.String},
		{"order_status", dataset.String},
		{"order_purchase_timestamp", dataset.String},
		{"order_approved_at", dataset.String},
		{"order_delivered_carrier_date", dataset.String},
		{"order_delivered_customer_date", dataset.String},
		{"order_estimated_delivery_date", dataset.String},
	}},
	Products: {Columns: []ColumnSpec{
		{"product_id", dataset.String},
		{"product_category_name", dataset.String},
		{"product_name_lenght", dataset.Float},
		{"product_description_lenght", dataset.Float},
		{"product_photos_qty", dataset.Float},
		{"product_weight_g", dataset.Float},
		{"product_length_cm", dataset.Float},
		{"product_height_cm", dataset.Float},
		{"product_width_cm", dataset.Float},
	}},
	Sellers: {Columns: []ColumnSpec{
		{"seller_id", dataset.String},
		{"seller_zip_code_prefix", dataset.Int},
		{"seller_city", dataset.String},
		{"seller_state", dataset.String},
	}},
	CategoryTranslation: {Columns: []ColumnSpec{
		{"product_category_name", dataset.String},
		{"product_category_name_english", dataset.String},
	}},
}

// Files maps dataset name to the default CSV file name in the data directory.
var Files = map[string]string{
	Customers:           "olist_customers_dataset.csv",
	Geolocation:         "olist_geolocation_dataset.csv",
	OrderItems:          "olist_order_items_dataset.csv",
	OrderPayments:       "olist_order_payments_dataset.csv",
	OrderReviews:        "olist_order_reviews_dataset.csv",
	Orders:              "olist_orders_dataset.csv",
	Products:            "olist_products_dataset.csv",
	Sellers:             "olist_sellers_dataset.csv",
	CategoryTranslation: "product_category_name_translation.csv",
}

// DateColumns maps dataset name to the columns the transform stage parses as
// timestamps. Columns listed here are exempt from the generic "unknown" fill
// during null handling: a null date means "not yet" and stays null.
var DateColumns = map[string][]string{
	Orders: {
		"order_purchase_timestamp",
		"order_approved_at",
		"order_delivered_carrier_date",
		"order_delivered_customer_date",
		"order_estimated_delivery_date",
	},
	OrderItems:   {"shipping_limit_date"},
	OrderReviews: {"review_creation_date", "review_answer_timestamp"},
}

// StagingKeys maps dataset name to the primary key the staging loader dedups
// on (last write wins within a batch).
var StagingKeys = map[string][]string{
	Customers:     {"customer_id"},
	Geolocation:   {"geolocation_zip_code_prefix", "geolocation_lat", "geolocation_lng"},
	OrderItems:    {"order_id", "order_item_id"},
	OrderPayments: {"order_id", "payment_sequential"},
	OrderReviews:  {"review_id"},
	Orders:        {"order_id"},
	Products:      {"product_id"},
	Sellers:       {"seller_id"},
}

// StagingColumns returns the column shape persisted to staging for a dataset:
// the extract columns with registered date columns retyped Time, plus the
// derived columns the transform stage adds (the english category on
// products). Metadata columns (source, load_timestamp, load_id) are the
// loader's concern, not part of this shape.
func StagingColumns(name string) []ColumnSpec {
	spec, ok := Specs[name]
	if !ok {
		return nil
	}
	out := make([]ColumnSpec, 0, len(spec.Columns)+1)
	for _, c := range spec.Columns {
		if IsDateColumn(name, c.Name) {
			c.Type = dataset.Time
		}
		out = append(out, c)
		if name == Products && c.Name == "product_category_name" {
			out = append(out, ColumnSpec{"product_category_name_english", dataset.String})
		}
	}
	return out
}

// IsDateColumn reports whether col is a registered date column of the dataset.
func IsDateColumn(datasetName, col string) bool {
	for _, c := range DateColumns[datasetName] {
		if c == col {
			return true
		}
	}
	return false
}
