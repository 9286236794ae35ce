package transform

import (
	"fmt"
	"math"
	"time"

	"olistetl/internal/dataset"
	"olistetl/internal/schema"
)

// maxDeliveryDays is the outlier cutoff for delivery_time_days. Values above
// it (or below zero) are suppressed to null, not corrected. The cutoff does
// NOT apply to delivery_delay_days; early deliveries are meaningful negatives
// and late-data errors there are kept as-is. Preserve the asymmetry.
const maxDeliveryDays = 365

// orderAcc accumulates per-order item measures.
type orderAcc struct {
	price   float64
	freight float64
	count   int64
	maxItem int64
	hasItem bool
}

// OrderMetrics reduces order_items to one row per order: summed price and
// freight, item count, max item sequence number, and the derived total value
// (price + freight). Output rows appear in first-seen order of order_id, so
// repeated runs over the same input produce identical tables. Orders with no
// items never appear, by construction.
func OrderMetrics(items *dataset.Table) (*dataset.Table, error) {
	idCol, ok := items.Col("order_id")
	if !ok {
		return nil, fmt.Errorf("order metrics: order_items table has no order_id column")
	}

	keys := make([]string, 0, len(idCol.Vals))
	accs := make(map[string]*orderAcc, len(idCol.Vals))

	for i, v := range idCol.Vals {
		id, ok := v.(string)
		if !ok {
			continue
		}
		acc := accs[id]
		if acc == nil {
			acc = &orderAcc{}
			accs[id] = acc
			keys = append(keys, id)
		}
		if p, ok := items.FloatAt(i, "price"); ok {
			acc.price += p
		}
		if f, ok := items.FloatAt(i, "freight_value"); ok {
			acc.freight += f
		}
		if _, ok := items.StringAt(i, "product_id"); ok {
			acc.count++
		}
		if n, ok := items.IntAt(i, "order_item_id"); ok {
			if !acc.hasItem || n > acc.maxItem {
				acc.maxItem = n
			}
			acc.hasItem = true
		}
	}

	n := len(keys)
	ids := make([]any, n)
	totalPrice := make([]any, n)
	totalFreight := make([]any, n)
	counts := make([]any, n)
	maxItems := make([]any, n)
	totals := make([]any, n)

	for i, id := range keys {
		acc := accs[id]
		ids[i] = id
		totalPrice[i] = acc.price
		totalFreight[i] = acc.freight
		counts[i] = acc.count
		if acc.hasItem {
			maxItems[i] = acc.maxItem
		}
		totals[i] = acc.price + acc.freight
	}

	return dataset.New(
		dataset.Column{Name: "order_id", Type: dataset.String, Vals: ids},
		dataset.Column{Name: "order_items_total_price", Type: dataset.Float, Vals: totalPrice},
		dataset.Column{Name: "order_items_total_freight", Type: dataset.Float, Vals: totalFreight},
		dataset.Column{Name: "order_items_count", Type: dataset.Int, Vals: counts},
		dataset.Column{Name: "order_max_item_id", Type: dataset.Int, Vals: maxItems},
		dataset.Column{Name: "order_total_value", Type: dataset.Float, Vals: totals},
	)
}

// wholeDays floors a duration between two timestamps to whole days, matching
// calendar-difference semantics for negative spans (-1 hour is day -1).
func wholeDays(from, to timeValue) (int64, bool) {
	if !from.ok || !to.ok {
		return 0, false
	}
	return int64(math.Floor(to.t.Sub(from.t).Hours() / 24)), true
}

type timeValue struct {
	t  time.Time
	ok bool
}

// DeliveryMetrics derives per-order delivery durations from orders and
// returns a new orders table with delivery_time_days and delivery_delay_days
// columns added (each only when its input columns exist):
//
//   - delivery_time_days: delivered minus purchase, floored to whole days;
//     nulled when negative or above maxDeliveryDays (outlier suppression).
//   - delivery_delay_days: delivered minus estimated; negative means early
//     delivery and is kept.
//
// Both are null-propagating: a missing input date yields a null metric. The
// input columns are (re)converted to timestamps first, so the function is
// safe to call on raw or already-enriched orders tables.
func DeliveryMetrics(orders *dataset.Table) (*dataset.Table, Stats) {
	out, st := ConvertDates(orders, schema.DateColumns[schema.Orders])
	n := out.NumRows()

	timeAt := func(row int, col string) timeValue {
		t, ok := out.TimeAt(row, col)
		return timeValue{t: t, ok: ok}
	}

	if out.Has("order_delivered_customer_date") && out.Has("order_purchase_timestamp") {
		vals := make([]any, n)
		for i := 0; i < n; i++ {
			days, ok := wholeDays(timeAt(i, "order_purchase_timestamp"), timeAt(i, "order_delivered_customer_date"))
			if !ok {
				continue
			}
			if days < 0 || days > maxDeliveryDays {
				st.OutliersSuppressed++
				continue
			}
			vals[i] = days
		}
		next, err := out.WithColumn(dataset.Column{Name: "delivery_time_days", Type: dataset.Int, Vals: vals})
		if err == nil {
			out = next
		}
	}

	if out.Has("order_delivered_customer_date") && out.Has("order_estimated_delivery_date") {
		vals := make([]any, n)
		for i := 0; i < n; i++ {
			if days, ok := wholeDays(timeAt(i, "order_estimated_delivery_date"), timeAt(i, "order_delivered_customer_date")); ok {
				vals[i] = days
			}
		}
		next, err := out.WithColumn(dataset.Column{Name: "delivery_delay_days", Type: dataset.Int, Vals: vals})
		if err == nil {
			out = next
		}
	}

	return out, st
}
