package series

import (
	"time"
)

// Resample reduces t to one row per period bucket using fn. PeriodNone
// returns t unchanged. Buckets without observations are not emitted; the
// result is ordered by bucket date and each bucket sees its rows in
// chronological order, whatever the input order.
func Resample(t *Table, p Period, fn AggFunc) (*Table, error) {
	if p == PeriodNone {
		return t, nil
	}
	if _, ok := reducers[fn]; !ok {
		return nil, lookupError(ErrUnknownAggFunc, "aggregation function %q is not supported", string(fn))
	}

	var buckets []time.Time
	var members [][]int
	for _, r := range t.RowsByDate() {
		end := p.BucketEnd(t.Index[r])
		if n := len(buckets); n > 0 && buckets[n-1].Equal(end) {
			members[n-1] = append(members[n-1], r)
			continue
		}
		buckets = append(buckets, end)
		members = append(members, []int{r})
	}

	values := make([][]float64, t.Width())
	scratch := make([]float64, 0, 32)
	for c := range values {
		col := make([]float64, len(buckets))
		for b, rows := range members {
			scratch = scratch[:0]
			for _, r := range rows {
				scratch = append(scratch, t.values[c][r])
			}
			col[b] = fn.Reduce(scratch)
		}
		values[c] = col
	}

	columns := append([]string(nil), t.Columns...)
	out, err := NewTable(buckets, columns, values)
	if err != nil {
		return nil, err
	}
	out.Source = t.Source
	return out, nil
}
