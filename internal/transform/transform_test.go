package transform

import (
	"reflect"
	"testing"

	"olistetl/internal/dataset"
	"olistetl/internal/schema"
)

func fullInput(t *testing.T) map[string]*dataset.Table {
	t.Helper()
	return map[string]*dataset.Table{
		schema.Orders: table(t,
			strCol("order_id", "o1", "o2"),
			strCol("customer_id", "c1", "c1"),
			strCol("order_status", "delivered", "delivered"),
			strCol("order_purchase_timestamp", "2017-10-02 10:00:00", "2017-11-01 08:00:00"),
			strCol("order_delivered_customer_date", "2017-10-05 10:00:00", nil),
			strCol("order_estimated_delivery_date", "2017-10-10 00:00:00", "2017-11-10 00:00:00"),
		),
		schema.OrderItems: table(t,
			strCol("order_id", "o1", "o1"),
			intCol("order_item_id", int64(1), int64(2)),
			strCol("product_id", "p1", "p2"),
			strCol("seller_id", "s1", "s2"),
			floatCol("price", 10.0, 25.0),
			floatCol("freight_value", 2.0, 3.0),
		),
		schema.OrderPayments: table(t,
			strCol("order_id", "o1"),
			strCol("payment_type", "credit_card"),
			intCol("payment_installments", int64(1)),
			floatCol("payment_value", 40.0),
		),
		schema.OrderReviews: table(t,
			strCol("order_id", "o1"),
			intCol("review_score", int64(5)),
			strCol("review_comment_title", nil),
			strCol("review_comment_message", nil),
		),
		schema.Customers: table(t,
			strCol("customer_id", "c1"),
			strCol("customer_unique_id", "u1"),
			strCol("customer_state", "SP"),
			strCol("customer_city", "campinas"),
		),
		schema.Products: table(t,
			strCol("product_id", "p1", "p2"),
			strCol("product_category_name", "beleza_saude", nil),
		),
		schema.CategoryTranslation: table(t,
			strCol("product_category_name", "beleza_saude"),
			strCol("product_category_name_english", "health_beauty"),
		),
		schema.Geolocation: table(t,
			floatCol("geolocation_lat", -23.5),
			floatCol("geolocation_lng", -46.6),
		),
		schema.Sellers: table(t,
			strCol("seller_id", "s1"),
			strCol("seller_city", nil),
			strCol("seller_state", "SP"),
		),
	}
}

func TestAll(t *testing.T) {
	t.Parallel()

	got, st, err := All(fullInput(t))
	if err != nil {
		t.Fatalf("All: %v", err)
	}

	fact, ok := got["fact_orders"]
	if !ok {
		t.Fatal("fact_orders missing")
	}
	if fact.NumRows() != 2 {
		t.Fatalf("fact rows = %d, want 2", fact.NumRows())
	}
	if vals := colVals(t, fact, "order_total_value"); !reflect.DeepEqual(vals, []any{40.0, nil}) {
		t.Errorf("order_total_value = %v", vals)
	}
	if vals := colVals(t, fact, "delivery_time_days"); !reflect.DeepEqual(vals, []any{int64(3), nil}) {
		t.Errorf("delivery_time_days = %v", vals)
	}
	if vals := colVals(t, fact, "has_review_comment"); !reflect.DeepEqual(vals, []any{false, nil}) {
		t.Errorf("has_review_comment = %v", vals)
	}
	if vals := colVals(t, fact, "customer_unique_id"); !reflect.DeepEqual(vals, []any{"u1", "u1"}) {
		t.Errorf("customer_unique_id = %v", vals)
	}
	// Two-seller tie on o1 resolves to the first-seen seller.
	if vals := colVals(t, fact, "main_seller_id"); !reflect.DeepEqual(vals, []any{"s1", nil}) {
		t.Errorf("main_seller_id = %v", vals)
	}

	// Derived tables beyond the fact.
	if _, ok := got["order_metrics"]; !ok {
		t.Error("order_metrics missing")
	}
	if vals := colVals(t, got[schema.Products], "product_category_name_english"); !reflect.DeepEqual(vals, []any{"health_beauty", "unknown"}) {
		t.Errorf("english categories = %v", vals)
	}
	if vals := colVals(t, got[schema.Customers], "is_recurring_customer"); !reflect.DeepEqual(vals, []any{true}) {
		t.Errorf("is_recurring_customer = %v", vals)
	}
	if vals := colVals(t, got[schema.Geolocation], "is_valid_coordinate"); !reflect.DeepEqual(vals, []any{true}) {
		t.Errorf("is_valid_coordinate = %v", vals)
	}
	if vals := colVals(t, got[schema.Sellers], "seller_city"); !reflect.DeepEqual(vals, []any{"unknown"}) {
		t.Errorf("seller_city = %v", vals)
	}
	if st.NullsReplaced == 0 {
		t.Error("NullsReplaced not counted")
	}
}

func TestAllDeterministic(t *testing.T) {
	t.Parallel()

	first, _, err := All(fullInput(t))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, _, err := All(fullInput(t))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(keysOf(first), keysOf(second)) {
		t.Fatalf("table sets differ: %v vs %v", keysOf(first), keysOf(second))
	}
	for name, a := range first {
		b := second[name]
		if !reflect.DeepEqual(a.Names(), b.Names()) {
			t.Errorf("%s: column order differs", name)
			continue
		}
		for _, col := range a.Names() {
			av := colVals(t, a, col)
			bv := colVals(t, b, col)
			if !reflect.DeepEqual(av, bv) {
				t.Errorf("%s.%s differs between runs", name, col)
			}
		}
	}
}

func TestAllFactGate(t *testing.T) {
	t.Parallel()

	// Sellers gate the fact table.
	in := fullInput(t)
	delete(in, schema.Sellers)
	got, _, err := All(in)
	if err != nil {
		t.Fatalf("All without sellers: %v", err)
	}
	if _, ok := got["fact_orders"]; ok {
		t.Error("fact_orders built without sellers")
	}

	// The translation lookup does not: categories fall back to "unknown".
	in = fullInput(t)
	delete(in, schema.CategoryTranslation)
	got, _, err = All(in)
	if err != nil {
		t.Fatalf("All without translation: %v", err)
	}
	fact, ok := got["fact_orders"]
	if !ok {
		t.Fatal("fact_orders missing without the translation lookup")
	}
	if vals := colVals(t, fact, "main_product_category"); !reflect.DeepEqual(vals, []any{"unknown", nil}) {
		t.Errorf("main_product_category = %v", vals)
	}
}

func keysOf(m map[string]*dataset.Table) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func TestAllGracefulDegradation(t *testing.T) {
	t.Parallel()

	in := map[string]*dataset.Table{
		schema.Orders: table(t,
			strCol("order_id", "o1", "o2"),
			strCol("customer_id", "c1", "c1"),
		),
		schema.Customers: table(t,
			strCol("customer_id", "c1"),
			strCol("customer_unique_id", "u1"),
		),
	}

	got, _, err := All(in)
	if err != nil {
		t.Fatalf("All: %v", err)
	}

	if _, ok := got["fact_orders"]; ok {
		t.Error("fact_orders built without its required inputs")
	}
	if _, ok := got["order_metrics"]; ok {
		t.Error("order_metrics built without order_items")
	}
	if vals := colVals(t, got[schema.Customers], "is_recurring_customer"); !reflect.DeepEqual(vals, []any{true}) {
		t.Errorf("is_recurring_customer = %v", vals)
	}
}
