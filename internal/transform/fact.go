package transform

import (
	"fmt"
	"strings"

	"olistetl/internal/dataset"
)

// FactSources carries the cleaned tables the fact builder consumes. Orders is
// mandatory; any other table may be nil, in which case the aggregate columns
// it would contribute are omitted entirely rather than filled with nulls, so
// partial analytics stay useful when a source is absent.
type FactSources struct {
	Orders        *dataset.Table
	OrderItems    *dataset.Table
	OrderPayments *dataset.Table
	OrderReviews  *dataset.Table
	Customers     *dataset.Table
	Products      *dataset.Table
}

// BuildFact produces the denormalized fact table: exactly one row per orders
// row, outer-joined with order metrics, delivery metrics, payment and review
// aggregates, customer attributes, and main product/category/seller
// attribution. Missing per-order metrics are null cells, never row loss.
func BuildFact(src FactSources) (*dataset.Table, Stats, error) {
	if src.Orders == nil {
		return nil, Stats{}, fmt.Errorf("build fact: orders table is required")
	}
	if !src.Orders.Has("order_id") {
		return nil, Stats{}, fmt.Errorf("build fact: orders table has no order_id column")
	}

	// Derive delivery metrics only when the caller passed a raw orders table;
	// an already-enriched one keeps its columns and its outlier accounting.
	fact := src.Orders
	var st Stats
	if !fact.Has("delivery_time_days") && !fact.Has("delivery_delay_days") {
		fact, st = DeliveryMetrics(src.Orders)
	}

	if src.OrderItems != nil {
		metrics, err := OrderMetrics(src.OrderItems)
		if err != nil {
			return nil, st, fmt.Errorf("build fact: %w", err)
		}
		fact, err = leftJoin(fact, "order_id", metrics, "order_id",
			"order_items_total_price", "order_items_total_freight",
			"order_items_count", "order_max_item_id", "order_total_value")
		if err != nil {
			return nil, st, fmt.Errorf("build fact: join order metrics: %w", err)
		}
	}

	if src.OrderPayments != nil {
		pay, err := aggregatePayments(src.OrderPayments)
		if err != nil {
			return nil, st, fmt.Errorf("build fact: %w", err)
		}
		fact, err = leftJoin(fact, "order_id", pay, "order_id",
			"total_payment_value", "payment_types", "max_installments")
		if err != nil {
			return nil, st, fmt.Errorf("build fact: join payment metrics: %w", err)
		}
	}

	if src.OrderReviews != nil {
		rev, err := aggregateReviews(src.OrderReviews)
		if err != nil {
			return nil, st, fmt.Errorf("build fact: %w", err)
		}
		fact, err = leftJoin(fact, "order_id", rev, "order_id",
			"avg_review_score", "has_review_comment")
		if err != nil {
			return nil, st, fmt.Errorf("build fact: join review metrics: %w", err)
		}
	}

	if src.Customers != nil {
		if !fact.Has("customer_id") {
			return nil, st, fmt.Errorf("build fact: orders table has no customer_id column to join customers on")
		}
		var err error
		fact, err = leftJoin(fact, "customer_id", src.Customers, "customer_id",
			"customer_unique_id", "customer_state", "customer_city")
		if err != nil {
			return nil, st, fmt.Errorf("build fact: join customers: %w", err)
		}
	}

	if src.OrderItems != nil {
		attr, err := attributeMainEntities(src.OrderItems, src.Products)
		if err != nil {
			return nil, st, fmt.Errorf("build fact: %w", err)
		}
		cols := []string{"main_product_id", "main_seller_id", "unique_sellers_count"}
		if src.Products != nil {
			cols = append(cols, "main_product_category")
		}
		fact, err = leftJoin(fact, "order_id", attr, "order_id", cols...)
		if err != nil {
			return nil, st, fmt.Errorf("build fact: join attribution: %w", err)
		}
	}

	return fact, st, nil
}

// leftJoin appends the named columns of src to base, matched by string key.
// Base rows without a match get null cells; src rows without a base match are
// dropped (outer joins never invent orders). Named columns absent from src
// are skipped.
func leftJoin(base *dataset.Table, baseKey string, src *dataset.Table, srcKey string, names ...string) (*dataset.Table, error) {
	idx, err := src.RowIndex(srcKey)
	if err != nil {
		return nil, err
	}

	n := base.NumRows()
	cols := make([]dataset.Column, 0, len(names))
	for _, name := range names {
		srcCol, ok := src.Col(name)
		if !ok {
			continue
		}
		vals := make([]any, n)
		for i := 0; i < n; i++ {
			key, ok := base.StringAt(i, baseKey)
			if !ok {
				continue
			}
			if j, ok := idx[key]; ok {
				vals[i] = srcCol.Vals[j]
			}
		}
		cols = append(cols, dataset.Column{Name: name, Type: srcCol.Type, Vals: vals})
	}
	return base.WithColumns(cols...)
}

// paymentAcc accumulates per-order payment measures.
type paymentAcc struct {
	total        float64
	hasTotal     bool
	types        []string
	seenTypes    map[string]struct{}
	installments int64
	hasInst      bool
}

// aggregatePayments reduces order_payments to one row per order: summed
// payment value, the distinct payment types in first-seen order joined with
// ", ", and the maximum installment count.
func aggregatePayments(payments *dataset.Table) (*dataset.Table, error) {
	idCol, ok := payments.Col("order_id")
	if !ok {
		return nil, fmt.Errorf("aggregate payments: order_payments table has no order_id column")
	}

	keys := make([]string, 0, len(idCol.Vals))
	accs := make(map[string]*paymentAcc, len(idCol.Vals))

	for i, v := range idCol.Vals {
		id, ok := v.(string)
		if !ok {
			continue
		}
		acc := accs[id]
		if acc == nil {
			acc = &paymentAcc{seenTypes: make(map[string]struct{})}
			accs[id] = acc
			keys = append(keys, id)
		}
		if val, ok := payments.FloatAt(i, "payment_value"); ok {
			acc.total += val
			acc.hasTotal = true
		}
		if typ, ok := payments.StringAt(i, "payment_type"); ok {
			if _, seen := acc.seenTypes[typ]; !seen {
				acc.seenTypes[typ] = struct{}{}
				acc.types = append(acc.types, typ)
			}
		}
		if inst, ok := payments.IntAt(i, "payment_installments"); ok {
			if !acc.hasInst || inst > acc.installments {
				acc.installments = inst
			}
			acc.hasInst = true
		}
	}

	n := len(keys)
	ids := make([]any, n)
	totals := make([]any, n)
	types := make([]any, n)
	insts := make([]any, n)
	for i, id := range keys {
		acc := accs[id]
		ids[i] = id
		if acc.hasTotal {
			totals[i] = acc.total
		}
		if len(acc.types) > 0 {
			types[i] = strings.Join(acc.types, ", ")
		}
		if acc.hasInst {
			insts[i] = acc.installments
		}
	}

	return dataset.New(
		dataset.Column{Name: "order_id", Type: dataset.String, Vals: ids},
		dataset.Column{Name: "total_payment_value", Type: dataset.Float, Vals: totals},
		dataset.Column{Name: "payment_types", Type: dataset.String, Vals: types},
		dataset.Column{Name: "max_installments", Type: dataset.Int, Vals: insts},
	)
}

// reviewAcc accumulates per-order review measures.
type reviewAcc struct {
	scoreSum   float64
	scoreCount int64
	hasComment bool
}

// aggregateReviews reduces order_reviews to one row per order: the mean
// review score and whether any review carries a non-empty comment message.
// Null handling upstream encodes "no comment" as "", so emptiness is the
// absence test here.
func aggregateReviews(reviews *dataset.Table) (*dataset.Table, error) {
	idCol, ok := reviews.Col("order_id")
	if !ok {
		return nil, fmt.Errorf("aggregate reviews: order_reviews table has no order_id column")
	}

	keys := make([]string, 0, len(idCol.Vals))
	accs := make(map[string]*reviewAcc, len(idCol.Vals))

	for i, v := range idCol.Vals {
		id, ok := v.(string)
		if !ok {
			continue
		}
		acc := accs[id]
		if acc == nil {
			acc = &reviewAcc{}
			accs[id] = acc
			keys = append(keys, id)
		}
		if score, ok := reviews.FloatAt(i, "review_score"); ok {
			acc.scoreSum += score
			acc.scoreCount++
		}
		if msg, ok := reviews.StringAt(i, "review_comment_message"); ok && msg != "" {
			acc.hasComment = true
		}
	}

	n := len(keys)
	ids := make([]any, n)
	scores := make([]any, n)
	comments := make([]any, n)
	for i, id := range keys {
		acc := accs[id]
		ids[i] = id
		if acc.scoreCount > 0 {
			scores[i] = acc.scoreSum / float64(acc.scoreCount)
		}
		comments[i] = acc.hasComment
	}

	return dataset.New(
		dataset.Column{Name: "order_id", Type: dataset.String, Vals: ids},
		dataset.Column{Name: "avg_review_score", Type: dataset.Float, Vals: scores},
		dataset.Column{Name: "has_review_comment", Type: dataset.Bool, Vals: comments},
	)
}

// modeAgg tracks value frequencies plus first-occurrence positions so the
// mode can break ties deterministically: highest count wins, then lowest
// first-seen index. This is an explicit stable reduction rather than a
// generic mode that would depend on incidental map ordering.
type modeAgg struct {
	counts map[string]int
	first  map[string]int
}

func newModeAgg() *modeAgg {
	return &modeAgg{counts: make(map[string]int), first: make(map[string]int)}
}

func (m *modeAgg) add(val string, idx int) {
	if _, seen := m.counts[val]; !seen {
		m.first[val] = idx
	}
	m.counts[val]++
}

// best returns the modal value, or ok=false when nothing was added.
func (m *modeAgg) best() (string, bool) {
	var (
		bestVal   string
		bestCount int
		bestFirst int
		found     bool
	)
	for val, count := range m.counts {
		first := m.first[val]
		if !found || count > bestCount || (count == bestCount && first < bestFirst) {
			bestVal, bestCount, bestFirst, found = val, count, first, true
		}
	}
	return bestVal, found
}

// orderAttr accumulates attribution state for one order.
type orderAttr struct {
	product  *modeAgg
	category *modeAgg
	seller   *modeAgg
	sellers  map[string]struct{}
}

// attributeMainEntities resolves, per order, the most frequent product,
// (english) category, and seller among its items, with first-seen tie-breaks,
// plus the count of distinct sellers. When products is nil the category
// column is not produced; when a product has no category the item counts
// toward "unknown" before the mode is taken.
func attributeMainEntities(items, products *dataset.Table) (*dataset.Table, error) {
	idCol, ok := items.Col("order_id")
	if !ok {
		return nil, fmt.Errorf("attribute main entities: order_items table has no order_id column")
	}

	var categoryOf map[string]int
	if products != nil {
		var err error
		categoryOf, err = products.RowIndex("product_id")
		if err != nil {
			return nil, fmt.Errorf("attribute main entities: products table: %w", err)
		}
	}

	keys := make([]string, 0, len(idCol.Vals))
	attrs := make(map[string]*orderAttr, len(idCol.Vals))

	for i, v := range idCol.Vals {
		id, ok := v.(string)
		if !ok {
			continue
		}
		attr := attrs[id]
		if attr == nil {
			attr = &orderAttr{
				product:  newModeAgg(),
				category: newModeAgg(),
				seller:   newModeAgg(),
				sellers:  make(map[string]struct{}),
			}
			attrs[id] = attr
			keys = append(keys, id)
		}

		if pid, ok := items.StringAt(i, "product_id"); ok {
			attr.product.add(pid, i)
			if products != nil {
				cat := unknown
				if j, found := categoryOf[pid]; found {
					if c, ok := products.StringAt(j, "product_category_name_english"); ok && c != "" {
						cat = c
					}
				}
				attr.category.add(cat, i)
			}
		} else if products != nil {
			attr.category.add(unknown, i)
		}

		if sid, ok := items.StringAt(i, "seller_id"); ok {
			attr.seller.add(sid, i)
			attr.sellers[sid] = struct{}{}
		}
	}

	n := len(keys)
	ids := make([]any, n)
	mainProducts := make([]any, n)
	mainCategories := make([]any, n)
	mainSellers := make([]any, n)
	sellerCounts := make([]any, n)

	for i, id := range keys {
		attr := attrs[id]
		ids[i] = id
		if v, ok := attr.product.best(); ok {
			mainProducts[i] = v
		}
		if v, ok := attr.category.best(); ok {
			mainCategories[i] = v
		}
		if v, ok := attr.seller.best(); ok {
			mainSellers[i] = v
		}
		sellerCounts[i] = int64(len(attr.sellers))
	}

	cols := []dataset.Column{
		{Name: "order_id", Type: dataset.String, Vals: ids},
		{Name: "main_product_id", Type: dataset.String, Vals: mainProducts},
	}
	if products != nil {
		cols = append(cols, dataset.Column{Name: "main_product_category", Type: dataset.String, Vals: mainCategories})
	}
	cols = append(cols,
		dataset.Column{Name: "main_seller_id", Type: dataset.String, Vals: mainSellers},
		dataset.Column{Name: "unique_sellers_count", Type: dataset.Int, Vals: sellerCounts},
	)
	return dataset.New(cols...)
}
