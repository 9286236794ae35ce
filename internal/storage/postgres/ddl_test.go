package postgres

import (
	"context"
	"strings"
	"testing"

	"olistetl/internal/schema"
)

func TestStagingTableDDL(t *testing.T) {
	t.Parallel()

	ddl := stagingTableDDL(schema.Orders)

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS staging.orders",
		`"order_id" VARCHAR(255)`,
		`"order_purchase_timestamp" TIMESTAMP`,
		"source VARCHAR(255)",
		"load_timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
		"load_id VARCHAR(36)",
		`PRIMARY KEY ("order_id")`,
	} {
		if !strings.Contains(ddl, want) {
			t.Errorf("orders DDL missing %q:\n%s", want, ddl)
		}
	}
}

func TestStagingTableDDL_ReviewCommentsAreText(t *testing.T) {
	t.Parallel()

	ddl := stagingTableDDL(schema.OrderReviews)
	if !strings.Contains(ddl, `"review_comment_message" TEXT`) {
		t.Errorf("review comments should be TEXT:\n%s", ddl)
	}
	if !strings.Contains(ddl, `"review_score" INTEGER`) {
		t.Errorf("review score should be INTEGER:\n%s", ddl)
	}
}

func TestStagingTableDDL_ProductsCarryTranslation(t *testing.T) {
	t.Parallel()

	ddl := stagingTableDDL(schema.Products)
	if !strings.Contains(ddl, "product_category_name_english") {
		t.Errorf("products staging table must hold the enriched category column:\n%s", ddl)
	}
}

// execRecorder captures DDL statements instead of running them.
type execRecorder struct {
	stmts []string
}

func (e *execRecorder) Exec(ctx context.Context, sql string) error {
	e.stmts = append(e.stmts, sql)
	return nil
}

func TestEnsureSchemaStatementOrder(t *testing.T) {
	t.Parallel()

	rec := &execRecorder{}
	if err := EnsureSchema(context.Background(), rec); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	if len(rec.stmts) < 2 || !strings.HasPrefix(rec.stmts[0], "CREATE SCHEMA") {
		t.Fatalf("first statement = %q, want CREATE SCHEMA", rec.stmts[0])
	}

	var stagingTables, hasFact int
	for _, s := range rec.stmts {
		if strings.Contains(s, "staging.") && strings.HasPrefix(s, "CREATE TABLE") {
			stagingTables++
		}
		if strings.Contains(s, "analytics.fact_orders") && strings.HasPrefix(s, "CREATE TABLE") {
			hasFact++
		}
		if strings.Contains(s, "category_translation") {
			t.Errorf("category translation must not get a staging table: %q", s)
		}
	}
	// Eight datasets stage; the translation table is lookup-only.
	if stagingTables != 8 {
		t.Errorf("staging tables = %d, want 8", stagingTables)
	}
	if hasFact != 1 {
		t.Errorf("fact table statements = %d, want 1", hasFact)
	}
}
