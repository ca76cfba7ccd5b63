package series

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggFunc_Reduce(t *testing.T) {
	nan := math.NaN()
	values := []float64{nan, 4, 1, nan, 3, nan}

	tests := []struct {
		fn   AggFunc
		want float64
	}{
		{AggLast, 3},
		{AggFirst, 4},
		{AggSum, 8},
		{AggMean, 8.0 / 3},
		{AggMin, 1},
		{AggMax, 4},
		{AggMedian, 3},
		{AggCount, 3},
		{AggVar, 7.0 / 3},
		{AggStd, math.Sqrt(7.0 / 3)},
	}

	for _, tt := range tests {
		t.Run(string(tt.fn), func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.fn.Reduce(values), 1e-12)
		})
	}
}

func TestAggFunc_AllMissing(t *testing.T) {
	values := []float64{math.NaN(), math.NaN()}

	for _, fn := range []AggFunc{AggLast, AggFirst, AggMean, AggMin, AggMax, AggMedian, AggStd, AggVar} {
		assert.True(t, math.IsNaN(fn.Reduce(values)), string(fn))
	}
	assert.Equal(t, 0.0, AggSum.Reduce(values))
	assert.Equal(t, 0.0, AggCount.Reduce(values))
}

func TestAggFunc_MedianEven(t *testing.T) {
	assert.Equal(t, 2.5, AggMedian.Reduce([]float64{4, 1, 3, 2}))
}

func TestAggFunc_ReduceDoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	AggMedian.Reduce(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestParseAggFunc(t *testing.T) {
	fn, err := ParseAggFunc("mean")
	require.NoError(t, err)
	assert.Equal(t, AggMean, fn)

	fn, err = ParseAggFunc("")
	require.NoError(t, err)
	assert.Equal(t, AggFunc(""), fn)

	_, err = ParseAggFunc("average")
	assert.ErrorIs(t, err, ErrUnknownAggFunc)

	assert.Contains(t, AggFuncs(), "last")
	assert.IsIncreasing(t, AggFuncs())
}
