package series

import (
	"time"
)

// Period is the bucket a table is resampled to.
type Period int

const (
	// PeriodNone leaves the table at its native frequency.
	PeriodNone Period = iota
	// PeriodMonthEnd buckets by calendar month, labelled with the month's
	// last business day.
	PeriodMonthEnd
	// PeriodYearEnd buckets by calendar year, labelled with the year's last
	// business day.
	PeriodYearEnd
)

func (p Period) String() string {
	switch p {
	case PeriodNone:
		return "none"
	case PeriodMonthEnd:
		return "month-end"
	case PeriodYearEnd:
		return "year-end"
	default:
		return "unknown"
	}
}

// BucketEnd returns the label of the bucket containing t.
func (p Period) BucketEnd(t time.Time) time.Time {
	switch p {
	case PeriodMonthEnd:
		return lastBusinessDay(t.Year(), t.Month())
	case PeriodYearEnd:
		return lastBusinessDay(t.Year(), time.December)
	default:
		return t
	}
}

// lastBusinessDay returns the last Monday-to-Friday date of the month, UTC.
// Public holidays are not considered.
func lastBusinessDay(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
