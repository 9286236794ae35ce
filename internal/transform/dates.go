package transform

import (
	"time"

	"olistetl/internal/dataset"
)

// dateLayouts are tried in order. The marketplace extracts use
// "2006-01-02 15:04:05" almost exclusively; the rest cover hand-edited and
// date-only cells.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// parseTimestamp attempts the known layouts in order.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ConvertDates parses the named columns of t as timestamps and returns a new
// table with those columns retyped to Time. Cells that cannot be parsed
// become nil rather than failing the run; a cell that is already a time value
// passes through, which makes the conversion idempotent. Columns absent from
// t are skipped.
func ConvertDates(t *dataset.Table, cols []string) (*dataset.Table, Stats) {
	var st Stats
	out := t
	for _, name := range cols {
		col, ok := t.Col(name)
		if !ok {
			continue
		}
		vals := make([]any, len(col.Vals))
		for i, v := range col.Vals {
			switch x := v.(type) {
			case nil:
				// stays nil
			case time.Time:
				vals[i] = x
			case string:
				if ts, ok := parseTimestamp(x); ok {
					vals[i] = ts
					st.DatesCoerced++
				} else if x != "" {
					st.DateParseErrors++
				}
			default:
				st.DateParseErrors++
			}
		}
		next, err := out.WithColumn(dataset.Column{Name: name, Type: dataset.Time, Vals: vals})
		if err != nil {
			continue
		}
		out = next
	}
	return out, st
}
