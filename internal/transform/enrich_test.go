package transform

import (
	"reflect"
	"testing"
)

func TestEnrichProducts(t *testing.T) {
	t.Parallel()

	products := table(t,
		strCol("product_id", "p1", "p2", "p3"),
		strCol("product_category_name", "beleza_saude", "categoria_nova", "unknown"),
	)
	translation := table(t,
		strCol("product_category_name", "beleza_saude"),
		strCol("product_category_name_english", "health_beauty"),
	)

	got, err := EnrichProducts(products, translation)
	if err != nil {
		t.Fatalf("EnrichProducts: %v", err)
	}

	// Translation hit, untranslated original kept, unknown stays unknown.
	want := []any{"health_beauty", "categoria_nova", "unknown"}
	if vals := colVals(t, got, "product_category_name_english"); !reflect.DeepEqual(vals, want) {
		t.Errorf("english = %v, want %v", vals, want)
	}
}

func TestEnrichProductsMissingLookupColumn(t *testing.T) {
	t.Parallel()

	products := table(t, strCol("product_id", "p1"))
	translation := table(t,
		strCol("product_category_name", "beleza_saude"),
		strCol("product_category_name_english", "health_beauty"),
	)
	if _, err := EnrichProducts(products, translation); err == nil {
		t.Fatal("want error for products without product_category_name")
	}
}

func TestClassifyRecurrence(t *testing.T) {
	t.Parallel()

	// c1 and c2 are the same person (one unique id); c3 ordered once.
	customers := table(t,
		strCol("customer_id", "c1", "c2", "c3"),
		strCol("customer_unique_id", "u1", "u1", "u2"),
	)
	orders := table(t,
		strCol("order_id", "o1", "o2", "o3"),
		strCol("customer_id", "c1", "c2", "c3"),
	)

	got, err := ClassifyRecurrence(orders, customers)
	if err != nil {
		t.Fatalf("ClassifyRecurrence: %v", err)
	}

	if vals := colVals(t, got, "total_orders"); !reflect.DeepEqual(vals, []any{int64(2), int64(2), int64(1)}) {
		t.Errorf("total_orders = %v", vals)
	}
	if vals := colVals(t, got, "is_recurring_customer"); !reflect.DeepEqual(vals, []any{true, true, false}) {
		t.Errorf("is_recurring_customer = %v", vals)
	}
}

func TestValidateGeolocation(t *testing.T) {
	t.Parallel()

	geo := table(t,
		floatCol("geolocation_lat", -23.5, 10.0, -23.5, nil),
		floatCol("geolocation_lng", -46.6, -46.6, -10.0, -46.6),
	)
	got := ValidateGeolocation(geo)

	want := []any{true, false, false, false}
	if vals := colVals(t, got, "is_valid_coordinate"); !reflect.DeepEqual(vals, want) {
		t.Errorf("is_valid_coordinate = %v, want %v", vals, want)
	}
}
