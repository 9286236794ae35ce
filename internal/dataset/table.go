// Package dataset defines the tabular container exchanged between the
// extract, transform, and load stages: an ordered sequence of named, typed
// columns of equal length, where each cell is either a scalar value or nil
// ("no value").
//
// Design goals:
//   - Columnar: every stage in this pipeline is column-oriented (fills,
//     coercions, aggregations), so cells live in per-column slices.
//   - Value semantics at the stage boundary: a stage that enriches a table
//     publishes a new Table; derived columns never alias input storage.
//   - No reflection in the hot paths; cells are plain `any` holding one of
//     string, int64, float64, bool, or time.Time.
package dataset

import (
	"fmt"
	"time"
)

// Type enumerates the scalar types a column may carry.
type Type uint8

const (
	String Type = iota
	Int
	Float
	Bool
	Time
)

// String returns a short lowercase name for the type.
func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "time"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Column is a named, typed sequence of nullable cells. A nil cell means
// "no value"; a non-nil cell holds the Go scalar matching Type.
type Column struct {
	Name string
	Type Type
	Vals []any
}

// Table is an ordered collection of equal-length columns.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New builds a Table from the given columns. All columns must have the same
// length; a mismatch is a construction bug and returns an error naming the
// offending column.
func New(cols ...Column) (*Table, error) {
	t := &Table{
		cols:  cols,
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if i == 0 {
			t.rows = len(c.Vals)
		} else if len(c.Vals) != t.rows {
			return nil, fmt.Errorf("dataset: column %q has %d rows, want %d", c.Name, len(c.Vals), t.rows)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", c.Name)
		}
		t.index[c.Name] = i
	}
	return t, nil
}

// MustNew is New for statically known-good inputs (tests, registries).
func MustNew(cols ...Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Col returns the named column. The returned Column shares storage with the
// table; callers must not mutate Vals.
func (t *Table) Col(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// Columns returns the backing columns in order. Read-only by convention.
func (t *Table) Columns() []Column { return t.cols }

// Value returns the cell at (row, name), or nil when the column is absent or
// the cell holds no value.
func (t *Table) Value(row int, name string) any {
	i, ok := t.index[name]
	if !ok || row < 0 || row >= t.rows {
		return nil
	}
	return t.cols[i].Vals[row]
}

// StringAt returns the string cell at (row, name) and whether it was present.
func (t *Table) StringAt(row int, name string) (string, bool) {
	s, ok := t.Value(row, name).(string)
	return s, ok
}

// IntAt returns the int64 cell at (row, name) and whether it was present.
func (t *Table) IntAt(row int, name string) (int64, bool) {
	v, ok := t.Value(row, name).(int64)
	return v, ok
}

// FloatAt returns the float64 cell at (row, name) and whether it was present.
// Integer cells are widened so numeric aggregations need not care how the
// extract stage typed the column.
func (t *Table) FloatAt(row int, name string) (float64, bool) {
	switch v := t.Value(row, name).(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// BoolAt returns the bool cell at (row, name) and whether it was present.
func (t *Table) BoolAt(row int, name string) (bool, bool) {
	v, ok := t.Value(row, name).(bool)
	return v, ok
}

// TimeAt returns the time.Time cell at (row, name) and whether it was present.
func (t *Table) TimeAt(row int, name string) (time.Time, bool) {
	v, ok := t.Value(row, name).(time.Time)
	return v, ok
}

// Select returns a new Table containing the named columns, in the given
// order, sharing cell storage with the source. Unknown names are skipped so
// callers can project optimistically over partially present inputs.
func (t *Table) Select(names ...string) *Table {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		if c, ok := t.Col(n); ok {
			cols = append(cols, c)
		}
	}
	out, _ := New(cols...)
	return out
}

// WithColumn returns a new Table with col appended (or replacing an existing
// column of the same name, in place in the ordering). The source table is
// not modified.
func (t *Table) WithColumn(col Column) (*Table, error) {
	if len(col.Vals) != t.rows {
		return nil, fmt.Errorf("dataset: column %q has %d rows, want %d", col.Name, len(col.Vals), t.rows)
	}
	cols := make([]Column, len(t.cols), len(t.cols)+1)
	copy(cols, t.cols)
	if i, ok := t.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols...)
}

// WithColumns is WithColumn over several columns.
func (t *Table) WithColumns(cols ...Column) (*Table, error) {
	out := t
	var err error
	for _, c := range cols {
		out, err = out.WithColumn(c)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RenameColumns returns a new Table with column names mapped through ren.
// Names absent from ren are kept.
func (t *Table) RenameColumns(ren map[string]string) *Table {
	cols := make([]Column, len(t.cols))
	copy(cols, t.cols)
	for i := range cols {
		if n, ok := ren[cols[i].Name]; ok {
			cols[i].Name = n
		}
	}
	out, _ := New(cols...)
	return out
}

// RowIndex builds a first-occurrence index from the string values of the key
// column to row numbers. Rows whose key cell is nil or not a string are
// skipped. First occurrence wins, which is what makes left joins over the
// index deterministic.
func (t *Table) RowIndex(keyCol string) (map[string]int, error) {
	c, ok := t.Col(keyCol)
	if !ok {
		return nil, fmt.Errorf("dataset: key column %q not found", keyCol)
	}
	idx := make(map[string]int, len(c.Vals))
	for i, v := range c.Vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if _, seen := idx[s]; !seen {
			idx[s] = i
		}
	}
	return idx, nil
}

// NullCount returns the number of nil cells across all columns.
func (t *Table) NullCount() int {
	n := 0
	for _, c := range t.cols {
		for _, v := range c.Vals {
			if v == nil {
				n++
			}
		}
	}
	return n
}
