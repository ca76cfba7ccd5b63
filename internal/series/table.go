package series

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// DateFormat is the layout used when a table's index is rendered as text.
const DateFormat = "2006-01-02"

// Table is a date-indexed set of numeric columns. Missing values are NaN.
//
// Row order is whatever produced the table: Normalize keeps the source row
// order and does not sort, while Resample and OuterJoin return rows in
// ascending date order.
type Table struct {
	// Source is the canonical resource the table was read from, if any.
	Source Resource

	Index   []time.Time
	Columns []string

	// values is column-major: values[c][r].
	values [][]float64
}

// NewTable builds a table from an index, column names and column-major
// values. Every column must have one value per index entry.
func NewTable(index []time.Time, columns []string, values [][]float64) (*Table, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("table has %d column names but %d columns", len(columns), len(values))
	}
	for i, col := range values {
		if len(col) != len(index) {
			return nil, fmt.Errorf("column %q has %d values, index has %d", columns[i], len(col), len(index))
		}
	}
	return &Table{Index: index, Columns: columns, values: values}, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Index)
}

// Width returns the number of value columns.
func (t *Table) Width() int {
	return len(t.Columns)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of the named column. The slice is shared with
// the table.
func (t *Table) Column(name string) ([]float64, bool) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil, false
	}
	return t.values[i], true
}

// ColumnAt returns the values of column i. The slice is shared with the
// table.
func (t *Table) ColumnAt(i int) []float64 {
	return t.values[i]
}

// Value returns the cell at row r, column c.
func (t *Table) Value(r, c int) float64 {
	return t.values[c][r]
}

// Row returns a copy of row r.
func (t *Table) Row(r int) []float64 {
	row := make([]float64, len(t.values))
	for c := range t.values {
		row[c] = t.values[c][r]
	}
	return row
}

// IsSorted reports whether the index is non-decreasing.
func (t *Table) IsSorted() bool {
	return sort.SliceIsSorted(t.Index, func(i, j int) bool { return t.Index[i].Before(t.Index[j]) })
}

// RowsByDate returns row positions ordered by date, ties kept in source
// order.
func (t *Table) RowsByDate() []int {
	order := make([]int, t.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return t.Index[order[a]].Before(t.Index[order[b]]) })
	return order
}

// OuterJoin combines tables on their date index. The result holds the union
// of all dates in ascending order and every column of every table; cells a
// table has no observation for are NaN. A column name that is already taken
// gets the owning table's Source appended ("value_SMB_Factor").
func OuterJoin(tables ...*Table) (*Table, error) {
	positions := make([]map[int64]int, len(tables))
	dates := make(map[int64]time.Time)

	for i, t := range tables {
		positions[i] = make(map[int64]int, t.Len())
		for r, d := range t.Index {
			key := d.UnixNano()
			if _, dup := positions[i][key]; dup {
				return nil, parsingError(ErrDuplicateIndex, "cannot join %s: %s appears more than once",
					describe(t, i), d.Format(DateFormat))
			}
			positions[i][key] = r
			dates[key] = d
		}
	}

	keys := make([]int64, 0, len(dates))
	for k := range dates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	index := make([]time.Time, len(keys))
	for i, k := range keys {
		index[i] = dates[k]
	}

	var columns []string
	var values [][]float64
	taken := make(map[string]bool)

	for i, t := range tables {
		for c, name := range t.Columns {
			out := name
			if taken[out] {
				out = name + "_" + suffix(t, i)
			}
			taken[out] = true

			col := make([]float64, len(keys))
			for r, k := range keys {
				if src, ok := positions[i][k]; ok {
					col[r] = t.values[c][src]
				} else {
					col[r] = math.NaN()
				}
			}
			columns = append(columns, out)
			values = append(values, col)
		}
	}

	return &Table{Index: index, Columns: columns, values: values}, nil
}

func suffix(t *Table, i int) string {
	if t.Source != "" {
		return string(t.Source)
	}
	return fmt.Sprintf("%d", i+1)
}

func describe(t *Table, i int) string {
	if t.Source != "" {
		return string(t.Source)
	}
	return fmt.Sprintf("table %d", i+1)
}

type jsonRow struct {
	Date   string     `json:"date"`
	Values []*float64 `json:"values"`
}

type jsonTable struct {
	Source  string    `json:"source,omitempty"`
	Columns []string  `json:"columns"`
	Rows    []jsonRow `json:"rows"`
}

// MarshalJSON encodes the table row by row; NaN cells become null.
func (t *Table) MarshalJSON() ([]byte, error) {
	out := jsonTable{
		Source:  string(t.Source),
		Columns: t.Columns,
		Rows:    make([]jsonRow, t.Len()),
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for r, d := range t.Index {
		vals := make([]*float64, len(t.values))
		for c := range t.values {
			if v := t.values[c][r]; !math.IsNaN(v) {
				vals[c] = &v
			}
		}
		out.Rows[r] = jsonRow{Date: d.Format(DateFormat), Values: vals}
	}
	return json.Marshal(out)
}
