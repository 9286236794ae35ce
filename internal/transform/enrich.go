package transform

import (
	"fmt"

	"olistetl/internal/dataset"
)

// EnrichProducts left-joins products against the category translation lookup
// and returns products with a product_category_name_english column that is
// never null: translation match first, then the original category name, then
// "unknown".
func EnrichProducts(products, translation *dataset.Table) (*dataset.Table, error) {
	catCol, ok := products.Col("product_category_name")
	if !ok {
		return nil, fmt.Errorf("enrich products: products table has no product_category_name column")
	}
	if !translation.Has("product_category_name") || !translation.Has("product_category_name_english") {
		return nil, fmt.Errorf("enrich products: category_translation table is missing its lookup columns")
	}

	lookup := make(map[string]string, translation.NumRows())
	for i := 0; i < translation.NumRows(); i++ {
		orig, ok := translation.StringAt(i, "product_category_name")
		if !ok {
			continue
		}
		eng, ok := translation.StringAt(i, "product_category_name_english")
		if !ok || eng == "" {
			continue
		}
		if _, seen := lookup[orig]; !seen {
			lookup[orig] = eng
		}
	}

	vals := make([]any, len(catCol.Vals))
	for i, v := range catCol.Vals {
		orig, _ := v.(string)
		switch {
		case orig != "" && lookup[orig] != "":
			vals[i] = lookup[orig]
		case orig != "":
			vals[i] = orig
		default:
			vals[i] = unknown
		}
	}

	return products.WithColumn(dataset.Column{
		Name: "product_category_name_english",
		Type: dataset.String,
		Vals: vals,
	})
}
