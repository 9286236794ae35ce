// Package transform implements the business-rule engine of the pipeline: it
// takes the mapping of raw dataset tables produced by extraction and returns
// the same mapping cleaned, enriched, and extended with the derived
// order_metrics and fact_orders tables.
//
// Every function here is a pure computation over immutable table values:
// inputs are never mutated, outputs are freshly built tables, and nothing
// reads the clock or any configuration. Data-quality problems are resolved by
// substitution (never by error); only structural problems (a join key column
// missing from a table a stage requires) propagate as errors, and those name
// the stage and table.
package transform

import (
	"strings"

	"olistetl/internal/dataset"
	"olistetl/internal/schema"
)

// unknown is the substitution value for missing categorical/text cells.
const unknown = "unknown"

// Stats accumulates data-quality counters across transform stages. These are
// observability only; they never affect results.
type Stats struct {
	NullsReplaced      int64 // text cells filled with "unknown" or ""
	DatesCoerced       int64 // cells successfully parsed as timestamps
	DateParseErrors    int64 // non-empty cells that failed timestamp parsing
	OutliersSuppressed int64 // delivery_time_days values nulled by the outlier policy
}

// add merges other into s.
func (s *Stats) add(other Stats) {
	s.NullsReplaced += other.NullsReplaced
	s.DatesCoerced += other.DatesCoerced
	s.DateParseErrors += other.DateParseErrors
	s.OutliersSuppressed += other.OutliersSuppressed
}

// StandardizeColumns returns t with column names lower-cased and trimmed.
func StandardizeColumns(t *dataset.Table) *dataset.Table {
	ren := make(map[string]string)
	for _, name := range t.Names() {
		std := strings.ToLower(strings.TrimSpace(name))
		if std != name {
			ren[name] = std
		}
	}
	if len(ren) == 0 {
		return t
	}
	return t.RenameColumns(ren)
}

// HandleMissing applies the per-entity null policy and returns a new table:
//
//   - products: null product_category_name becomes "unknown"; numeric
//     dimension/weight columns are never imputed.
//   - order_reviews: null comment title/message become "" (a missing comment
//     is meaningful and distinct from an unknown value).
//   - orders: delivery date columns stay null ("not yet delivered").
//   - any other textual column: null becomes "unknown".
//
// Date columns registered in schema.DateColumns are exempt from the generic
// fill; date conversion owns their null semantics. Unrecognized dataset
// names get only the generic rule, so new datasets pass through sensibly.
func HandleMissing(t *dataset.Table, datasetName string) (*dataset.Table, Stats) {
	var st Stats
	out := make([]dataset.Column, 0, t.NumCols())

	for _, col := range t.Columns() {
		fill, ok := fillValueFor(datasetName, col)
		if !ok {
			out = append(out, col)
			continue
		}
		filled := col
		copied := false
		for i, v := range col.Vals {
			if v != nil {
				continue
			}
			if !copied {
				filled.Vals = make([]any, len(col.Vals))
				copy(filled.Vals, col.Vals)
				copied = true
			}
			filled.Vals[i] = fill
			st.NullsReplaced++
		}
		out = append(out, filled)
	}

	res, err := dataset.New(out...)
	if err != nil {
		// Column lengths are preserved by construction; reaching here means a
		// corrupted input table, which extraction already guards against.
		return t, st
	}
	return res, st
}

// fillValueFor resolves the substitution value for a column, or ok=false when
// the column's nulls must be preserved.
func fillValueFor(datasetName string, col dataset.Column) (string, bool) {
	if col.Type != dataset.String {
		return "", false
	}
	if schema.IsDateColumn(datasetName, col.Name) {
		return "", false
	}
	if datasetName == schema.OrderReviews &&
		(col.Name == "review_comment_title" || col.Name == "review_comment_message") {
		return "", true
	}
	return unknown, true
}
