package load

import (
	"context"
	"reflect"
	"testing"

	"olistetl/internal/dataset"
	"olistetl/internal/schema"
	"olistetl/internal/storage"
)

// fakeRepo records repository calls for assertions.
type fakeRepo struct {
	copies  map[string][][]any
	columns map[string][]string
	upserts []string
	deletes []string
	keymaps map[string]map[string]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		copies:  map[string][][]any{},
		columns: map[string][]string{},
		keymaps: map[string]map[string]int64{},
	}
}

func (f *fakeRepo) Exec(ctx context.Context, sql string) error { return nil }

func (f *fakeRepo) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.copies[table] = append(f.copies[table], rows...)
	f.columns[table] = columns
	return int64(len(rows)), nil
}

func (f *fakeRepo) DeleteBySource(ctx context.Context, table, source string) error {
	f.deletes = append(f.deletes, table+"|"+source)
	return nil
}

func (f *fakeRepo) Upsert(ctx context.Context, table string, columns, conflictCols, updateCols []string, rows [][]any) (int64, error) {
	f.upserts = append(f.upserts, table)
	f.copies[table] = append(f.copies[table], rows...)
	f.columns[table] = columns
	return int64(len(rows)), nil
}

func (f *fakeRepo) KeyMap(ctx context.Context, table, idCol string, keyCols ...string) (map[string]int64, error) {
	return f.keymaps[table], nil
}

func (f *fakeRepo) Close() {}

var _ storage.Repository = (*fakeRepo)(nil)

func TestStagingDedupAndStamp(t *testing.T) {
	t.Parallel()

	// Two rows share seller_id; the later row must win, in the earlier slot.
	sellers := table(t,
		dataset.Column{Name: "seller_id", Type: dataset.String, Vals: []any{"s1", "s2", "s1"}},
		dataset.Column{Name: "seller_city", Type: dataset.String, Vals: []any{"old", "rio", "nova"}},
		dataset.Column{Name: "seller_state", Type: dataset.String, Vals: []any{"SP", "RJ", "SP"}},
	)

	repo := newFakeRepo()
	l := &Loader{Repo: repo, Job: "test", Source: "unit"}
	err := l.Staging(context.Background(), map[string]*dataset.Table{schema.Sellers: sellers})
	if err != nil {
		t.Fatalf("Staging: %v", err)
	}

	if want := []string{"staging.sellers|unit"}; !reflect.DeepEqual(repo.deletes, want) {
		t.Errorf("deletes = %v, want %v", repo.deletes, want)
	}

	rows := repo.copies["staging.sellers"]
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 after dedup", len(rows))
	}
	if rows[0][0] != "s1" || rows[0][1] != "nova" {
		t.Errorf("row 0 = %v, want last-write s1/nova", rows[0])
	}
	if rows[1][0] != "s2" {
		t.Errorf("row 1 = %v", rows[1])
	}

	cols := repo.columns["staging.sellers"]
	wantCols := []string{"seller_id", "seller_city", "seller_state", "source", "load_timestamp", "load_id"}
	if !reflect.DeepEqual(cols, wantCols) {
		t.Errorf("columns = %v, want %v", cols, wantCols)
	}
	// Metadata stamps: same source and load id on every row.
	if rows[0][3] != "unit" || rows[1][3] != "unit" {
		t.Errorf("source stamps = %v / %v", rows[0][3], rows[1][3])
	}
	if rows[0][5] == "" || rows[0][5] != rows[1][5] {
		t.Errorf("load ids differ: %v vs %v", rows[0][5], rows[1][5])
	}
}

func TestStagingSkipsMissingDatasets(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	l := &Loader{Repo: repo, Job: "test"}
	err := l.Staging(context.Background(), map[string]*dataset.Table{})
	if err != nil {
		t.Fatalf("Staging: %v", err)
	}
	if len(repo.copies) != 0 || len(repo.deletes) != 0 {
		t.Errorf("unexpected writes: %v %v", repo.copies, repo.deletes)
	}
}

func TestAnalyticsOrderAndFactKeys(t *testing.T) {
	t.Parallel()

	orders := table(t, dataset.Column{
		Name: "order_purchase_timestamp", Type: dataset.Time,
		Vals: []any{ts(t, "2017-10-02 10:00:00")},
	})
	customers := table(t,
		dataset.Column{Name: "customer_id", Type: dataset.String, Vals: []any{"c1"}},
		dataset.Column{Name: "customer_unique_id", Type: dataset.String, Vals: []any{"u1"}},
		dataset.Column{Name: "customer_state", Type: dataset.String, Vals: []any{"SP"}},
		dataset.Column{Name: "customer_city", Type: dataset.String, Vals: []any{"campinas"}},
		dataset.Column{Name: "customer_zip_code_prefix", Type: dataset.Int, Vals: []any{int64(13023)}},
	)
	sellers := table(t,
		dataset.Column{Name: "seller_id", Type: dataset.String, Vals: []any{"s1"}},
		dataset.Column{Name: "seller_state", Type: dataset.String, Vals: []any{"SP"}},
		dataset.Column{Name: "seller_city", Type: dataset.String, Vals: []any{"campinas"}},
		dataset.Column{Name: "seller_zip_code_prefix", Type: dataset.Int, Vals: []any{int64(13023)}},
	)
	fact := table(t,
		dataset.Column{Name: "order_id", Type: dataset.String, Vals: []any{"o1"}},
		dataset.Column{Name: "customer_id", Type: dataset.String, Vals: []any{"c1"}},
		dataset.Column{Name: "order_purchase_timestamp", Type: dataset.Time, Vals: []any{ts(t, "2017-10-02 10:00:00")}},
		dataset.Column{Name: "customer_state", Type: dataset.String, Vals: []any{"SP"}},
		dataset.Column{Name: "customer_city", Type: dataset.String, Vals: []any{"campinas"}},
		dataset.Column{Name: "order_status", Type: dataset.String, Vals: []any{"delivered"}},
	)

	repo := newFakeRepo()
	repo.keymaps["analytics.dim_time"] = map[string]int64{"2017-10-02": 1}
	repo.keymaps["analytics.dim_customers"] = map[string]int64{"c1": 2}
	repo.keymaps["analytics.dim_geography"] = map[string]int64{storage.CompositeKey("SP", "campinas"): 3}

	l := &Loader{Repo: repo, Job: "test"}
	err := l.Analytics(context.Background(), map[string]*dataset.Table{
		schema.Orders:    orders,
		schema.Customers: customers,
		schema.Sellers:   sellers,
		"fact_orders":    fact,
	})
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}

	want := []string{
		"analytics.dim_time",
		"analytics.dim_customers",
		"analytics.dim_sellers",
		"analytics.dim_geography",
		"analytics.fact_orders",
	}
	if !reflect.DeepEqual(repo.upserts, want) {
		t.Errorf("upsert order = %v, want %v", repo.upserts, want)
	}

	factRows := repo.copies["analytics.fact_orders"]
	if len(factRows) != 1 {
		t.Fatalf("fact rows = %d", len(factRows))
	}
	got := factRows[0][:6]
	wantKeys := []any{"o1", int64(1), int64(2), nil, nil, int64(3)}
	if !reflect.DeepEqual(got, wantKeys) {
		t.Errorf("fact keys = %v, want %v", got, wantKeys)
	}
}
