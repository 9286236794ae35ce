// Package load writes transformed tables into the warehouse: cleaned staging
// tables first, then the star schema dimensions and the order fact table.
// Everything goes through the backend-agnostic storage.Repository, so the
// same loader serves Postgres and SQLite.
package load

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"olistetl/internal/dataset"
	"olistetl/internal/metrics"
	"olistetl/internal/schema"
	"olistetl/internal/storage"
)

// Loader drives staging and analytics loads against one repository.
type Loader struct {
	Repo storage.Repository
	// Job labels metrics and log lines.
	Job string
	// Source tags staging rows; reloading the same source replaces its rows.
	Source string
	// BatchSize bounds bulk-copy batches; <= 0 means storage.DefaultBatchSize.
	BatchSize int
}

// Staging loads every transformed dataset present in tables into its staging
// table: expected columns only, primary-key duplicates collapsed (last write
// wins), rows stamped with the source tag, a shared load timestamp, and a
// fresh load id. Rows previously loaded under the same source tag are
// replaced.
func (l *Loader) Staging(ctx context.Context, tables map[string]*dataset.Table) error {
	loadID := uuid.NewString()
	loadedAt := time.Now().UTC()
	source := l.Source
	if source == "" {
		source = "csv"
	}

	for _, name := range schema.Names {
		if name == schema.CategoryTranslation {
			continue
		}
		t, ok := tables[name]
		if !ok || t == nil {
			continue
		}

		var cols []string
		for _, c := range schema.StagingColumns(name) {
			if t.Has(c.Name) {
				cols = append(cols, c.Name)
			}
		}
		if len(cols) == 0 {
			log.Printf("load: %s: no expected columns present, skipping", name)
			continue
		}

		rows, deduped := stagingRows(t, cols, schema.StagingKeys[name])
		if deduped > 0 {
			log.Printf("load: %s: collapsed %d duplicate keys", name, deduped)
			metrics.RecordRow(l.Job, "rows_deduped", int64(deduped))
		}
		for i := range rows {
			rows[i] = append(rows[i], source, loadedAt, loadID)
		}
		allCols := append(append([]string{}, cols...), "source", "load_timestamp", "load_id")

		table := "staging." + name
		if err := l.Repo.DeleteBySource(ctx, table, source); err != nil {
			return fmt.Errorf("load staging: %w", err)
		}
		n, err := storage.CopyBatches(ctx, l.Repo, table, allCols, rows, l.BatchSize)
		if err != nil {
			return fmt.Errorf("load staging %s: %w", name, err)
		}
		metrics.RecordRow(l.Job, "rows_loaded", n)
		metrics.RecordBatches(l.Job, 1)
	}
	return nil
}

// stagingRows projects cols out of t, collapsing rows that share the primary
// key. The last occurrence of a key wins but keeps the position of its first
// occurrence, so output order is stable across runs.
func stagingRows(t *dataset.Table, cols, keyCols []string) (rows [][]any, deduped int) {
	keys := make([]string, 0, len(keyCols))
	for _, k := range keyCols {
		if t.Has(k) {
			keys = append(keys, k)
		}
	}

	pos := make(map[uint64]int)
	for i := 0; i < t.NumRows(); i++ {
		row := make([]any, 0, len(cols)+3)
		for _, c := range cols {
			row = append(row, t.Value(i, c))
		}
		if len(keys) == 0 {
			rows = append(rows, row)
			continue
		}
		h := keyHash(t, i, keys)
		if at, seen := pos[h]; seen {
			rows[at] = row
			deduped++
			continue
		}
		pos[h] = len(rows)
		rows = append(rows, row)
	}
	return rows, deduped
}

// keyHash hashes the primary key cells of one row.
func keyHash(t *dataset.Table, row int, keys []string) uint64 {
	var h xxh3.Hasher
	for _, k := range keys {
		fmt.Fprintf(&h, "%v\x1f", t.Value(row, k))
	}
	return h.Sum64()
}

// Analytics loads the star schema: dimensions first, the fact table last so
// its surrogate-key lookups see fresh dimensions. Dimensions whose source
// table is absent are skipped; the fact load runs only when fact_orders was
// built.
func (l *Loader) Analytics(ctx context.Context, tables map[string]*dataset.Table) error {
	if orders := tables[schema.Orders]; orders != nil {
		rows := TimeRows(orders)
		if _, err := l.Repo.Upsert(ctx, "analytics.dim_time", TimeColumns, []string{"order_date"}, nil, rows); err != nil {
			return fmt.Errorf("load dim_time: %w", err)
		}
		log.Printf("load: dim_time: %d dates", len(rows))
	}

	if customers := tables[schema.Customers]; customers != nil {
		rows := CustomerRows(customers)
		update := CustomerColumns[1:]
		if _, err := l.Repo.Upsert(ctx, "analytics.dim_customers", CustomerColumns, []string{"customer_id"}, update, rows); err != nil {
			return fmt.Errorf("load dim_customers: %w", err)
		}
		log.Printf("load: dim_customers: %d customers", len(rows))
	}

	if products := tables[schema.Products]; products != nil {
		rows := ProductRows(products)
		update := ProductColumns[1:]
		if _, err := l.Repo.Upsert(ctx, "analytics.dim_products", ProductColumns, []string{"product_id"}, update, rows); err != nil {
			return fmt.Errorf("load dim_products: %w", err)
		}
		log.Printf("load: dim_products: %d products", len(rows))
	}

	if sellers := tables[schema.Sellers]; sellers != nil {
		rows := SellerRows(sellers)
		update := SellerColumns[1:]
		if _, err := l.Repo.Upsert(ctx, "analytics.dim_sellers", SellerColumns, []string{"seller_id"}, update, rows); err != nil {
			return fmt.Errorf("load dim_sellers: %w", err)
		}
		log.Printf("load: dim_sellers: %d sellers", len(rows))
	}

	if tables[schema.Customers] != nil && tables[schema.Sellers] != nil {
		rows := GeographyRows(tables[schema.Customers], tables[schema.Sellers])
		if _, err := l.Repo.Upsert(ctx, "analytics.dim_geography", GeographyColumns, GeographyColumns, nil, rows); err != nil {
			return fmt.Errorf("load dim_geography: %w", err)
		}
		log.Printf("load: dim_geography: %d locations", len(rows))
	}

	fact := tables["fact_orders"]
	if fact == nil {
		log.Printf("load: fact_orders not built, skipping fact load")
		return nil
	}

	keys, err := l.dimKeys(ctx)
	if err != nil {
		return err
	}
	rows := FactRows(fact, keys)
	update := FactColumns[1:]
	n, err := l.Repo.Upsert(ctx, "analytics.fact_orders", FactColumns, []string{"order_id"}, update, rows)
	if err != nil {
		return fmt.Errorf("load fact_orders: %w", err)
	}
	metrics.RecordRow(l.Job, "rows_loaded", n)
	log.Printf("load: fact_orders: %d orders", len(rows))
	return nil
}

// dimKeys fetches the natural-key lookup maps for the fact load.
func (l *Loader) dimKeys(ctx context.Context) (DimKeys, error) {
	var keys DimKeys
	var err error
	if keys.Time, err = l.Repo.KeyMap(ctx, "analytics.dim_time", "time_id", "order_date"); err != nil {
		return keys, fmt.Errorf("load fact_orders: %w", err)
	}
	if keys.Customer, err = l.Repo.KeyMap(ctx, "analytics.dim_customers", "customer_key", "customer_id"); err != nil {
		return keys, fmt.Errorf("load fact_orders: %w", err)
	}
	if keys.Product, err = l.Repo.KeyMap(ctx, "analytics.dim_products", "product_key", "product_id"); err != nil {
		return keys, fmt.Errorf("load fact_orders: %w", err)
	}
	if keys.Seller, err = l.Repo.KeyMap(ctx, "analytics.dim_sellers", "seller_key", "seller_id"); err != nil {
		return keys, fmt.Errorf("load fact_orders: %w", err)
	}
	if keys.Geography, err = l.Repo.KeyMap(ctx, "analytics.dim_geography", "geography_key", "state", "city"); err != nil {
		return keys, fmt.Errorf("load fact_orders: %w", err)
	}
	return keys, nil
}
