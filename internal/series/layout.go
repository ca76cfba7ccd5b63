package series

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLayout is the closed set of ways a NEFIN spreadsheet spreads a date
// over its columns.
type DateLayout int

const (
	// LayoutMonthYearLabel: one text column "Month/Year" holding "MM/YYYY".
	LayoutMonthYearLabel DateLayout = iota + 1
	// LayoutYearMonthDay: numeric "year", "month" and "day" columns.
	LayoutYearMonthDay
	// LayoutYearMonth: numeric "year" and "month" columns, day 1 implied.
	LayoutYearMonth
)

// Column names, matched literally after trimming surrounding spaces.
const (
	ColumnMonthYear = "Month/Year"
	ColumnYear      = "year"
	ColumnMonth     = "month"
	ColumnDay       = "day"
)

func (l DateLayout) String() string {
	switch l {
	case LayoutMonthYearLabel:
		return "month/year label"
	case LayoutYearMonthDay:
		return "year, month, day"
	case LayoutYearMonth:
		return "year, month"
	default:
		return "unknown"
	}
}

// DateColumns returns the columns the layout consumes.
func (l DateLayout) DateColumns() []string {
	switch l {
	case LayoutMonthYearLabel:
		return []string{ColumnMonthYear}
	case LayoutYearMonthDay:
		return []string{ColumnYear, ColumnMonth, ColumnDay}
	case LayoutYearMonth:
		return []string{ColumnYear, ColumnMonth}
	default:
		return nil
	}
}

// RawTable is a worksheet as read: a header row and the data rows below it.
// Rows may be shorter than the header; missing cells are empty.
type RawTable struct {
	Header []string
	Rows   [][]string
}

func (r *RawTable) cell(row, col int) string {
	if col >= len(r.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(r.Rows[row][col])
}

// Normalize replaces the layout's date columns with a date index. The
// remaining columns keep their names and order and are parsed as numbers;
// blank or non-numeric cells become NaN. Blank rows are skipped. Rows keep
// their source order.
func Normalize(raw *RawTable, layout DateLayout) (*Table, error) {
	dateCols := layout.DateColumns()
	if dateCols == nil {
		return nil, fmt.Errorf("unknown date layout %d", int(layout))
	}

	header := make([]string, len(raw.Header))
	positions := make(map[string]int, len(raw.Header))
	for i, h := range raw.Header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		header[i] = h
		if _, seen := positions[h]; !seen {
			positions[h] = i
		}
	}

	datePos := make([]int, len(dateCols))
	isDate := make(map[int]bool, len(dateCols))
	for i, name := range dateCols {
		pos, ok := positions[name]
		if !ok {
			return nil, parsingError(ErrMissingColumn, "expected column %q (layout: %s)", name, layout).
				WithContext("column", name)
		}
		datePos[i] = pos
		isDate[pos] = true
	}

	var valueCols []int
	var columns []string
	for i, h := range header {
		if !isDate[i] {
			valueCols = append(valueCols, i)
			columns = append(columns, h)
		}
	}

	index := make([]time.Time, 0, len(raw.Rows))
	values := make([][]float64, len(valueCols))
	for c := range values {
		values[c] = make([]float64, 0, len(raw.Rows))
	}

	for r := range raw.Rows {
		if raw.blank(r) {
			continue
		}
		d, err := layout.date(raw, r, datePos)
		if err != nil {
			// +2: one for the header, one for 1-based spreadsheet rows.
			return nil, parsingError(ErrInvalidDate, "row %d: %v", r+2, err).WithContext("row", r+2)
		}
		index = append(index, d)
		for c, pos := range valueCols {
			values[c] = append(values[c], parseNumber(raw.cell(r, pos)))
		}
	}

	return NewTable(index, columns, values)
}

func (r *RawTable) blank(row int) bool {
	for _, cell := range r.Rows[row] {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (l DateLayout) date(raw *RawTable, row int, pos []int) (time.Time, error) {
	switch l {
	case LayoutMonthYearLabel:
		return parseMonthYear(raw.cell(row, pos[0]))
	case LayoutYearMonthDay:
		return dateFromParts(raw.cell(row, pos[0]), raw.cell(row, pos[1]), raw.cell(row, pos[2]))
	case LayoutYearMonth:
		return dateFromParts(raw.cell(row, pos[0]), raw.cell(row, pos[1]), "1")
	default:
		return time.Time{}, fmt.Errorf("unknown date layout %d", int(l))
	}
}

// "2006.01" is how the legacy .xls reader renders a cell carrying an
// Excel date format.
var monthYearLayouts = []string{"1/2006", "2006.01", "2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

// parseMonthYear reads a "MM/YYYY" label. Workbooks that store the column
// as a real date yield a whole serial day number, a "YYYY.MM" rendering or
// an ISO date instead; all are accepted. The day is always 1.
func parseMonthYear(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty %q cell", ColumnMonthYear)
	}
	for _, layout := range monthYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial == math.Trunc(serial) {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a MM/YYYY label", s)
}

func dateFromParts(year, month, day string) (time.Time, error) {
	y, err := parseWhole(ColumnYear, year)
	if err != nil {
		return time.Time{}, err
	}
	m, err := parseWhole(ColumnMonth, month)
	if err != nil {
		return time.Time{}, err
	}
	d, err := parseWhole(ColumnDay, day)
	if err != nil {
		return time.Time{}, err
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, fmt.Errorf("%04d-%02d-%02d is not a calendar date", y, m, d)
	}
	return t, nil
}

// parseWhole accepts integral cells written either as "2001" or "2001.0".
func parseWhole(column, s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty %q cell", column)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q cell %q is not a whole number", column, s)
	}
	return int(f), nil
}

func parseNumber(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
