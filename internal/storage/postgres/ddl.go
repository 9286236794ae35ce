package postgres

import (
	"context"
	"fmt"
	"strings"

	"olistetl/internal/dataset"
	"olistetl/internal/schema"
)

// schemas created before any table DDL runs.
var warehouseSchemas = []string{"staging", "analytics"}

// starSchemaDDL creates the dimensional model. Surrogate keys are serials;
// natural keys carry UNIQUE constraints so upserts have a conflict target.
var starSchemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS analytics.dim_time (
		time_id SERIAL PRIMARY KEY,
		order_date DATE NOT NULL,
		order_year INTEGER,
		order_month INTEGER,
		order_quarter INTEGER,
		order_day_of_week INTEGER,
		order_day_name VARCHAR(20),
		UNIQUE(order_date)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.dim_customers (
		customer_key SERIAL PRIMARY KEY,
		customer_id VARCHAR(255) UNIQUE NOT NULL,
		customer_unique_id VARCHAR(255),
		customer_state VARCHAR(2),
		customer_city VARCHAR(255),
		is_recurring_customer BOOLEAN DEFAULT FALSE,
		total_orders INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.dim_products (
		product_key SERIAL PRIMARY KEY,
		product_id VARCHAR(255) UNIQUE NOT NULL,
		product_category_name VARCHAR(255),
		product_category_name_english VARCHAR(255),
		product_weight_g DOUBLE PRECISION,
		product_length_cm DOUBLE PRECISION,
		product_height_cm DOUBLE PRECISION,
		product_width_cm DOUBLE PRECISION,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.dim_sellers (
		seller_key SERIAL PRIMARY KEY,
		seller_id VARCHAR(255) UNIQUE NOT NULL,
		seller_state VARCHAR(2),
		seller_city VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.dim_geography (
		geography_key SERIAL PRIMARY KEY,
		state VARCHAR(2) NOT NULL,
		city VARCHAR(255),
		zip_code_prefix INTEGER,
		UNIQUE(state, city, zip_code_prefix)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.fact_orders (
		order_id VARCHAR(255) PRIMARY KEY,
		time_id INTEGER REFERENCES analytics.dim_time(time_id),
		customer_key INTEGER REFERENCES analytics.dim_customers(customer_key),
		product_key INTEGER,
		seller_key INTEGER,
		geography_key INTEGER REFERENCES analytics.dim_geography(geography_key),
		order_status VARCHAR(50),
		order_items_count INTEGER,
		order_total_value DOUBLE PRECISION,
		order_items_total_price DOUBLE PRECISION,
		order_items_total_freight DOUBLE PRECISION,
		delivery_time_days INTEGER,
		delivery_delay_days INTEGER,
		total_payment_value DOUBLE PRECISION,
		payment_types VARCHAR(255),
		max_installments INTEGER,
		avg_review_score DOUBLE PRECISION,
		has_review_comment BOOLEAN,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

var indexDDL = []string{
	"CREATE INDEX IF NOT EXISTS idx_fact_orders_time ON analytics.fact_orders(time_id)",
	"CREATE INDEX IF NOT EXISTS idx_fact_orders_customer ON analytics.fact_orders(customer_key)",
	"CREATE INDEX IF NOT EXISTS idx_fact_orders_geography ON analytics.fact_orders(geography_key)",
	"CREATE INDEX IF NOT EXISTS idx_fact_orders_status ON analytics.fact_orders(order_status)",
	"CREATE INDEX IF NOT EXISTS idx_dim_time_date ON analytics.dim_time(order_date)",
	"CREATE INDEX IF NOT EXISTS idx_dim_customers_id ON analytics.dim_customers(customer_id)",
	"CREATE INDEX IF NOT EXISTS idx_dim_products_id ON analytics.dim_products(product_id)",
	"CREATE INDEX IF NOT EXISTS idx_dim_sellers_id ON analytics.dim_sellers(seller_id)",
}

// sqlType maps a registry column type to its Postgres column type. Free-text
// review columns get TEXT; everything else stringy is VARCHAR(255).
func sqlType(datasetName string, col schema.ColumnSpec) string {
	switch col.Type {
	case dataset.Int:
		return "INTEGER"
	case dataset.Float:
		return "DOUBLE PRECISION"
	case dataset.Bool:
		return "BOOLEAN"
	case dataset.Time:
		return "TIMESTAMP"
	default:
		if datasetName == schema.OrderReviews && strings.HasPrefix(col.Name, "review_comment_") {
			return "TEXT"
		}
		return "VARCHAR(255)"
	}
}

// stagingTableDDL renders CREATE TABLE for one dataset's staging table from
// the schema registry, with the loader's metadata columns appended.
func stagingTableDDL(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS staging.%s (\n", name)
	for _, col := range schema.StagingColumns(name) {
		fmt.Fprintf(&b, "\t%s %s,\n", pgIdent(col.Name), sqlType(name, col))
	}
	b.WriteString("\tsource VARCHAR(255),\n")
	b.WriteString("\tload_timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,\n")
	b.WriteString("\tload_id VARCHAR(36)")
	if pk := schema.StagingKeys[name]; len(pk) > 0 {
		fmt.Fprintf(&b, ",\n\tPRIMARY KEY (%s)", strings.Join(mapIdent(pk), ", "))
	}
	b.WriteString("\n)")
	return b.String()
}

// EnsureSchema creates schemas, staging tables, and the star schema. Every
// statement is idempotent.
func EnsureSchema(ctx context.Context, repo interface {
	Exec(ctx context.Context, sql string) error
}) error {
	for _, s := range warehouseSchemas {
		if err := repo.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(s)); err != nil {
			return fmt.Errorf("create schema %s: %w", s, err)
		}
	}
	for _, name := range schema.Names {
		if name == schema.CategoryTranslation {
			// Lookup data only; it never lands in the warehouse.
			continue
		}
		if err := repo.Exec(ctx, stagingTableDDL(name)); err != nil {
			return fmt.Errorf("create staging.%s: %w", name, err)
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
