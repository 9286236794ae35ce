package transform

import (
	"fmt"

	"olistetl/internal/dataset"
)

// ClassifyRecurrence joins orders to customers on customer_id, counts orders
// per customer_unique_id, and returns a new customers table carrying
// total_orders and is_recurring_customer (true iff the unique id appears on
// more than one order). Customers with no orders get 0/false, a left-join
// default rather than an error.
func ClassifyRecurrence(orders, customers *dataset.Table) (*dataset.Table, error) {
	for _, col := range []string{"order_id", "customer_id"} {
		if !orders.Has(col) {
			return nil, fmt.Errorf("classify recurrence: orders table has no %s column", col)
		}
	}
	for _, col := range []string{"customer_id", "customer_unique_id"} {
		if !customers.Has(col) {
			return nil, fmt.Errorf("classify recurrence: customers table has no %s column", col)
		}
	}

	// customer_id -> customer_unique_id, first occurrence wins.
	uniqueOf := make(map[string]string, customers.NumRows())
	for i := 0; i < customers.NumRows(); i++ {
		cid, ok := customers.StringAt(i, "customer_id")
		if !ok {
			continue
		}
		uid, ok := customers.StringAt(i, "customer_unique_id")
		if !ok {
			continue
		}
		if _, seen := uniqueOf[cid]; !seen {
			uniqueOf[cid] = uid
		}
	}

	counts := make(map[string]int64)
	for i := 0; i < orders.NumRows(); i++ {
		if _, ok := orders.StringAt(i, "order_id"); !ok {
			continue
		}
		cid, ok := orders.StringAt(i, "customer_id")
		if !ok {
			continue
		}
		if uid, ok := uniqueOf[cid]; ok {
			counts[uid]++
		}
	}

	n := customers.NumRows()
	totals := make([]any, n)
	recurring := make([]any, n)
	for i := 0; i < n; i++ {
		var total int64
		if uid, ok := customers.StringAt(i, "customer_unique_id"); ok {
			total = counts[uid]
		}
		totals[i] = total
		recurring[i] = total > 1
	}

	return customers.WithColumns(
		dataset.Column{Name: "total_orders", Type: dataset.Int, Vals: totals},
		dataset.Column{Name: "is_recurring_customer", Type: dataset.Bool, Vals: recurring},
	)
}
