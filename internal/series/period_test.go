package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLastBusinessDay(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		want  time.Time
	}{
		{"weekday month end", 2024, time.February, date(2024, time.February, 29)},
		{"saturday rolls back", 2024, time.November, date(2024, time.November, 29)},
		{"sunday rolls back", 2025, time.August, date(2025, time.August, 29)},
		{"year end on saturday", 2022, time.December, date(2022, time.December, 30)},
		{"non-leap february", 2023, time.February, date(2023, time.February, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lastBusinessDay(tt.year, tt.month)
			assert.Equal(t, tt.want, got)
			assert.NotEqual(t, time.Saturday, got.Weekday())
			assert.NotEqual(t, time.Sunday, got.Weekday())
		})
	}
}

func TestPeriod_BucketEnd(t *testing.T) {
	d := date(2022, time.December, 31)

	assert.Equal(t, d, PeriodNone.BucketEnd(d))
	assert.Equal(t, date(2022, time.December, 30), PeriodMonthEnd.BucketEnd(d))
	assert.Equal(t, date(2022, time.December, 30), PeriodYearEnd.BucketEnd(date(2022, time.March, 3)))
	assert.Equal(t, date(2022, time.March, 31), PeriodMonthEnd.BucketEnd(date(2022, time.March, 3)))
}

func TestPeriod_String(t *testing.T) {
	assert.Equal(t, "none", PeriodNone.String())
	assert.Equal(t, "month-end", PeriodMonthEnd.String())
	assert.Equal(t, "year-end", PeriodYearEnd.String())
	assert.Equal(t, "unknown", Period(42).String())
}
