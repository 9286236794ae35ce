package transform

import (
	"fmt"
	"log"

	"olistetl/internal/dataset"
	"olistetl/internal/schema"
)

// requiredForFact lists the datasets the fact builder needs before it runs at
// all. With any of these absent the pipeline still produces every cleaned
// table it can; only fact_orders is skipped. The category translation lookup
// is not in the set: without it attribution falls back to "unknown"
// categories rather than blocking the fact table.
var requiredForFact = []string{
	schema.Orders,
	schema.OrderItems,
	schema.OrderPayments,
	schema.OrderReviews,
	schema.Customers,
	schema.Products,
	schema.Sellers,
}

// All runs the full transform sequence over the extracted tables and returns
// a fresh mapping of cleaned tables, extended with order_metrics and
// fact_orders when their source tables are present. Stages that depend on a
// missing dataset are skipped with a log line, never an error; errors mean a
// structural defect (a join key column missing from a table that is present).
//
// Input tables are never mutated, so All is safe to call twice over the same
// map and will return identical results.
func All(datasets map[string]*dataset.Table) (map[string]*dataset.Table, Stats, error) {
	var st Stats
	out := make(map[string]*dataset.Table, len(datasets)+2)

	for _, name := range schema.Names {
		t, ok := datasets[name]
		if !ok || t == nil {
			continue
		}
		t = StandardizeColumns(t)
		t, s := HandleMissing(t, name)
		st.add(s)
		if cols := schema.DateColumns[name]; len(cols) > 0 {
			t, s = ConvertDates(t, cols)
			st.add(s)
		}
		out[name] = t
	}

	if products, ok := out[schema.Products]; ok {
		if translation, ok := out[schema.CategoryTranslation]; ok {
			enriched, err := EnrichProducts(products, translation)
			if err != nil {
				return nil, st, fmt.Errorf("transform: %w", err)
			}
			out[schema.Products] = enriched
		} else {
			log.Printf("transform: %s not extracted, skipping product enrichment", schema.CategoryTranslation)
		}
	}

	if items, ok := out[schema.OrderItems]; ok {
		metrics, err := OrderMetrics(items)
		if err != nil {
			return nil, st, fmt.Errorf("transform: %w", err)
		}
		out["order_metrics"] = metrics
	}

	if orders, ok := out[schema.Orders]; ok {
		enriched, s := DeliveryMetrics(orders)
		st.add(s)
		out[schema.Orders] = enriched
	}

	if customers, ok := out[schema.Customers]; ok {
		if orders, ok := out[schema.Orders]; ok {
			classified, err := ClassifyRecurrence(orders, customers)
			if err != nil {
				return nil, st, fmt.Errorf("transform: %w", err)
			}
			out[schema.Customers] = classified
		} else {
			log.Printf("transform: %s not extracted, skipping recurrence classification", schema.Orders)
		}
	}

	if geo, ok := out[schema.Geolocation]; ok {
		out[schema.Geolocation] = ValidateGeolocation(geo)
	}

	if missing := missingForFact(out); len(missing) == 0 {
		fact, s, err := BuildFact(FactSources{
			Orders:        out[schema.Orders],
			OrderItems:    out[schema.OrderItems],
			OrderPayments: out[schema.OrderPayments],
			OrderReviews:  out[schema.OrderReviews],
			Customers:     out[schema.Customers],
			Products:      out[schema.Products],
		})
		if err != nil {
			return nil, st, fmt.Errorf("transform: %w", err)
		}
		st.add(s)
		out["fact_orders"] = fact
	} else {
		log.Printf("transform: skipping fact_orders, missing datasets: %v", missing)
	}

	return out, st, nil
}

// missingForFact returns which required fact inputs are absent.
func missingForFact(tables map[string]*dataset.Table) []string {
	var missing []string
	for _, name := range requiredForFact {
		if tables[name] == nil {
			missing = append(missing, name)
		}
	}
	return missing
}
