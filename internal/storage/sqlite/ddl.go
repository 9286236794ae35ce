package sqlite

import (
	"context"
	"fmt"
	"strings"

	"olistetl/internal/dataset"
	"olistetl/internal/schema"
)

// starSchemaDDL mirrors the Postgres dimensional model in SQLite's type
// system. INTEGER PRIMARY KEY gives the same rowid-backed surrogate keys that
// SERIAL provides in Postgres.
var starSchemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS analytics_dim_time (
		time_id INTEGER PRIMARY KEY,
		order_date TEXT NOT NULL UNIQUE,
		order_year INTEGER,
		order_month INTEGER,
		order_quarter INTEGER,
		order_day_of_week INTEGER,
		order_day_name TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_dim_customers (
		customer_key INTEGER PRIMARY KEY,
		customer_id TEXT UNIQUE NOT NULL,
		customer_unique_id TEXT,
		customer_state TEXT,
		customer_city TEXT,
		is_recurring_customer INTEGER DEFAULT 0,
		total_orders INTEGER DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_dim_products (
		product_key INTEGER PRIMARY KEY,
		product_id TEXT UNIQUE NOT NULL,
		product_category_name TEXT,
		product_category_name_english TEXT,
		product_weight_g REAL,
		product_length_cm REAL,
		product_height_cm REAL,
		product_width_cm REAL
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_dim_sellers (
		seller_key INTEGER PRIMARY KEY,
		seller_id TEXT UNIQUE NOT NULL,
		seller_state TEXT,
		seller_city TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_dim_geography (
		geography_key INTEGER PRIMARY KEY,
		state TEXT NOT NULL,
		city TEXT,
		zip_code_prefix INTEGER,
		UNIQUE(state, city, zip_code_prefix)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_fact_orders (
		order_id TEXT PRIMARY KEY,
		time_id INTEGER,
		customer_key INTEGER,
		product_key INTEGER,
		seller_key INTEGER,
		geography_key INTEGER,
		order_status TEXT,
		order_items_count INTEGER,
		order_total_value REAL,
		order_items_total_price REAL,
		order_items_total_freight REAL,
		delivery_time_days INTEGER,
		delivery_delay_days INTEGER,
		total_payment_value REAL,
		payment_types TEXT,
		max_installments INTEGER,
		avg_review_score REAL,
		has_review_comment INTEGER
	)`,
}

var indexDDL = []string{
	"CREATE INDEX IF NOT EXISTS idx_fact_orders_time ON analytics_fact_orders(time_id)",
	"CREATE INDEX IF NOT EXISTS idx_fact_orders_customer ON analytics_fact_orders(customer_key)",
	"CREATE INDEX IF NOT EXISTS idx_fact_orders_status ON analytics_fact_orders(order_status)",
}

// sqlType maps a registry column type to SQLite's storage classes. Timestamps
// are stored as text; normalizeRow keeps the format uniform.
func sqlType(col schema.ColumnSpec) string {
	switch col.Type {
	case dataset.Int, dataset.Bool:
		return "INTEGER"
	case dataset.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}

// stagingTableDDL renders CREATE TABLE for one dataset's staging table.
func stagingTableDDL(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS staging_%s (\n", name)
	for _, col := range schema.StagingColumns(name) {
		fmt.Fprintf(&b, "\t%s %s,\n", col.Name, sqlType(col))
	}
	b.WriteString("\tsource TEXT,\n")
	b.WriteString("\tload_timestamp TEXT,\n")
	b.WriteString("\tload_id TEXT")
	if pk := schema.StagingKeys[name]; len(pk) > 0 {
		fmt.Fprintf(&b, ",\n\tPRIMARY KEY (%s)", strings.Join(pk, ", "))
	}
	b.WriteString("\n)")
	return b.String()
}

// EnsureSchema creates staging and star schema tables. Every statement is
// idempotent.
func EnsureSchema(ctx context.Context, repo interface {
	Exec(ctx context.Context, sql string) error
}) error {
	for _, name := range schema.Names {
		if name == schema.CategoryTranslation {
			continue
		}
		if err := repo.Exec(ctx, stagingTableDDL(name)); err != nil {
			return fmt.Errorf("create staging_%s: %w", name, err)
		}
	}
	for _, stmt := range starSchemaDDL {
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create star schema: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
