package load

import (
	"reflect"
	"testing"
	"time"

	"olistetl/internal/dataset"
	"olistetl/internal/storage"
)

func table(t *testing.T, cols ...dataset.Column) *dataset.Table {
	t.Helper()
	tbl, err := dataset.New(cols...)
	if err != nil {
		t.Fatalf("building table: %v", err)
	}
	return tbl
}

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestTimeRows(t *testing.T) {
	t.Parallel()

	orders := table(t, dataset.Column{
		Name: "order_purchase_timestamp",
		Type: dataset.Time,
		Vals: []any{
			ts(t, "2017-10-02 10:56:33"), // a Monday
			ts(t, "2017-10-02 23:15:19"), // same date, must collapse
			ts(t, "2017-12-31 08:00:00"), // a Sunday, Q4
			nil,
		},
	})

	rows := TimeRows(orders)
	want := [][]any{
		{"2017-10-02", int64(2017), int64(10), int64(4), int64(0), "Monday"},
		{"2017-12-31", int64(2017), int64(12), int64(4), int64(6), "Sunday"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestGeographyRows(t *testing.T) {
	t.Parallel()

	customers := table(t,
		dataset.Column{Name: "customer_state", Type: dataset.String, Vals: []any{"SP", "SP"}},
		dataset.Column{Name: "customer_city", Type: dataset.String, Vals: []any{"campinas", "campinas"}},
		dataset.Column{Name: "customer_zip_code_prefix", Type: dataset.Int, Vals: []any{int64(13023), int64(13023)}},
	)
	sellers := table(t,
		dataset.Column{Name: "seller_state", Type: dataset.String, Vals: []any{"RJ"}},
		dataset.Column{Name: "seller_city", Type: dataset.String, Vals: []any{"rio de janeiro"}},
		dataset.Column{Name: "seller_zip_code_prefix", Type: dataset.Int, Vals: []any{nil}},
	)

	rows := GeographyRows(customers, sellers)
	want := [][]any{
		{"SP", "campinas", int64(13023)},
		{"RJ", "rio de janeiro", int64(0)},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestFactRows(t *testing.T) {
	t.Parallel()

	fact := table(t,
		dataset.Column{Name: "order_id", Type: dataset.String, Vals: []any{"o1", "o2"}},
		dataset.Column{Name: "customer_id", Type: dataset.String, Vals: []any{"c1", "c9"}},
		dataset.Column{Name: "order_purchase_timestamp", Type: dataset.Time, Vals: []any{ts(t, "2017-10-02 10:00:00"), nil}},
		dataset.Column{Name: "customer_state", Type: dataset.String, Vals: []any{"SP", nil}},
		dataset.Column{Name: "customer_city", Type: dataset.String, Vals: []any{"campinas", nil}},
		dataset.Column{Name: "main_product_id", Type: dataset.String, Vals: []any{"p1", nil}},
		dataset.Column{Name: "main_seller_id", Type: dataset.String, Vals: []any{"s1", nil}},
		dataset.Column{Name: "order_status", Type: dataset.String, Vals: []any{"delivered", "shipped"}},
		dataset.Column{Name: "order_total_value", Type: dataset.Float, Vals: []any{40.0, nil}},
	)
	keys := DimKeys{
		Time:      map[string]int64{"2017-10-02": 7},
		Customer:  map[string]int64{"c1": 11},
		Product:   map[string]int64{"p1": 21},
		Seller:    map[string]int64{"s1": 31},
		Geography: map[string]int64{storage.CompositeKey("SP", "campinas"): 41},
	}

	rows := FactRows(fact, keys)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	// o1 resolves every key.
	got := rows[0][:6]
	want := []any{"o1", int64(7), int64(11), int64(21), int64(31), int64(41)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("o1 keys = %v, want %v", got, want)
	}
	// o2 has no resolvable dimensions: null foreign keys, measures intact.
	got = rows[1][:6]
	want = []any{"o2", nil, nil, nil, nil, nil}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("o2 keys = %v, want %v", got, want)
	}
	if rows[1][6] != "shipped" {
		t.Errorf("o2 status = %v", rows[1][6])
	}
}
