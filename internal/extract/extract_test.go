package extract

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"olistetl/internal/dataset"
	"olistetl/internal/schema"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOneTypesAndNulls(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, schema.Files[schema.OrderItems],
		"order_id,order_item_id,product_id,seller_id,shipping_limit_date,price,freight_value\n"+
			"o1,1,p1,s1,2017-09-19 09:45:35,58.90,13.29\n"+
			"o2,2.0,p2,s2,,not-a-number,\n")

	e := &Extractor{Dir: dir}
	got, err := e.One(schema.OrderItems)
	if err != nil {
		t.Fatalf("One: %v", err)
	}
	if got == nil {
		t.Fatal("dataset skipped unexpectedly")
	}

	if c, _ := got.Col("order_item_id"); !reflect.DeepEqual(c.Vals, []any{int64(1), int64(2)}) {
		t.Errorf("order_item_id = %v", c.Vals)
	}
	// Empty and unparseable cells are nulls, never errors.
	if c, _ := got.Col("price"); !reflect.DeepEqual(c.Vals, []any{58.90, nil}) {
		t.Errorf("price = %v", c.Vals)
	}
	if c, _ := got.Col("shipping_limit_date"); !reflect.DeepEqual(c.Vals, []any{"2017-09-19 09:45:35", nil}) {
		t.Errorf("shipping_limit_date = %v", c.Vals)
	}
}

func TestOneBOMAndOddHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// BOM before the first header, non-breaking space inside another.
	writeFile(t, dir, schema.Files[schema.Sellers],
		"\ufeffseller_id,seller_zip_code_prefix, seller_city ,seller_state\n"+
			"s1,13023,campinas,SP\n")

	e := &Extractor{Dir: dir}
	got, err := e.One(schema.Sellers)
	if err != nil {
		t.Fatalf("One: %v", err)
	}
	if got == nil {
		t.Fatal("dataset skipped unexpectedly")
	}
	want := []string{"seller_id", "seller_zip_code_prefix", "seller_city", "seller_state"}
	if !reflect.DeepEqual(got.Names(), want) {
		t.Errorf("names = %v, want %v", got.Names(), want)
	}
}

func TestOneRaggedRows(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, schema.Files[schema.Sellers],
		"seller_id,seller_zip_code_prefix,seller_city,seller_state\n"+
			`s1,13023,sao "paulo,SP`+"\n"+
			"s2,80610\n"+
			"s3,3149,rio,RJ,extra\n")

	e := &Extractor{Dir: dir}
	got, err := e.One(schema.Sellers)
	if err != nil {
		t.Fatalf("One: %v", err)
	}
	if got == nil {
		t.Fatal("dataset skipped unexpectedly")
	}
	if got.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3", got.NumRows())
	}
	// Short rows pad with nulls, long rows drop the extras, stray quotes
	// survive as literal text.
	if c, _ := got.Col("seller_city"); !reflect.DeepEqual(c.Vals, []any{`sao "paulo`, nil, "rio"}) {
		t.Errorf("seller_city = %v", c.Vals)
	}
	if c, _ := got.Col("seller_state"); !reflect.DeepEqual(c.Vals, []any{"SP", nil, "RJ"}) {
		t.Errorf("seller_state = %v", c.Vals)
	}
}

func TestOneSkips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// orders file does not exist; customers file lacks expected columns.
	writeFile(t, dir, schema.Files[schema.Customers], "customer_id,something_else\nc1,x\n")

	e := &Extractor{Dir: dir}

	if got, err := e.One(schema.Orders); err != nil || got != nil {
		t.Errorf("missing file: got table=%v err=%v, want skip", got, err)
	}
	if got, err := e.One(schema.Customers); err != nil || got != nil {
		t.Errorf("bad header: got table=%v err=%v, want skip", got, err)
	}
}

func TestAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, schema.Files[schema.Orders],
		"order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date\n"+
			"o1,c1,delivered,2017-10-02 10:56:33,2017-10-02 11:07:15,2017-10-04 19:55:00,2017-10-10 21:25:13,2017-10-18 00:00:00\n")
	writeFile(t, dir, "custom_customers.csv",
		"customer_id,customer_unique_id,customer_zip_code_prefix,customer_city,customer_state\n"+
			"c1,u1,14409,franca,SP\n")

	e := &Extractor{
		Dir:   dir,
		Files: map[string]string{schema.Customers: "custom_customers.csv"},
	}
	got, err := e.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}

	for _, name := range []string{schema.Orders, schema.Customers} {
		if got[name] == nil {
			t.Errorf("%s missing from result", name)
		}
	}
	if len(got) != 2 {
		t.Errorf("extracted %d datasets, want 2", len(got))
	}
	if got[schema.Orders].NumRows() != 1 {
		t.Errorf("orders rows = %d", got[schema.Orders].NumRows())
	}
}

func TestParseCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cell string
		typ  dataset.Type
		want any
	}{
		{"", dataset.String, nil},
		{"abc", dataset.String, "abc"},
		{"42", dataset.Int, int64(42)},
		{"3.0", dataset.Int, int64(3)},
		{"3.5", dataset.Int, nil},
		{"1.25", dataset.Float, 1.25},
		{"x", dataset.Float, nil},
		{"true", dataset.Bool, true},
	}
	for _, tt := range tests {
		if got := parseCell(tt.cell, tt.typ); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCell(%q, %v) = %v, want %v", tt.cell, tt.typ, got, tt.want)
		}
	}
}
