package series

import (
	"math"
	"sort"
)

// AggFunc names a per-bucket reduction. Every reduction skips missing (NaN)
// observations.
type AggFunc string

const (
	AggLast   AggFunc = "last"
	AggFirst  AggFunc = "first"
	AggMean   AggFunc = "mean"
	AggSum    AggFunc = "sum"
	AggMin    AggFunc = "min"
	AggMax    AggFunc = "max"
	AggMedian AggFunc = "median"
	AggCount  AggFunc = "count"
	AggStd    AggFunc = "std"
	AggVar    AggFunc = "var"
)

// DefaultAggFunc is used when a period is requested without a function.
const DefaultAggFunc = AggLast

var reducers = map[AggFunc]func([]float64) float64{
	AggLast:   reduceLast,
	AggFirst:  reduceFirst,
	AggMean:   reduceMean,
	AggSum:    reduceSum,
	AggMin:    reduceMin,
	AggMax:    reduceMax,
	AggMedian: reduceMedian,
	AggCount:  reduceCount,
	AggStd:    func(v []float64) float64 { return math.Sqrt(reduceVar(v)) },
	AggVar:    reduceVar,
}

// AggFuncs returns the supported function names, sorted.
func AggFuncs() []string {
	names := make([]string, 0, len(reducers))
	for f := range reducers {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// ParseAggFunc validates a function name. The empty name is returned as is;
// callers decide whether to apply DefaultAggFunc.
func ParseAggFunc(name string) (AggFunc, error) {
	if name == "" {
		return "", nil
	}
	f := AggFunc(name)
	if _, ok := reducers[f]; !ok {
		return "", lookupError(ErrUnknownAggFunc, "aggregation function %q is not supported", name).
			WithContext("function", name)
	}
	return f, nil
}

// Reduce applies f to values in chronological order.
func (f AggFunc) Reduce(values []float64) float64 {
	reduce, ok := reducers[f]
	if !ok {
		return math.NaN()
	}
	return reduce(values)
}

func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func reduceLast(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i]
		}
	}
	return math.NaN()
}

func reduceFirst(values []float64) float64 {
	for _, v := range values {
		if !math.IsNaN(v) {
			return v
		}
	}
	return math.NaN()
}

func reduceSum(values []float64) float64 {
	sum := 0.0
	for _, v := range present(values) {
		sum += v
	}
	return sum
}

func reduceMean(values []float64) float64 {
	vs := present(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	return reduceSum(vs) / float64(len(vs))
}

func reduceMin(values []float64) float64 {
	vs := present(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	min := vs[0]
	for _, v := range vs[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func reduceMax(values []float64) float64 {
	vs := present(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	max := vs[0]
	for _, v := range vs[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func reduceMedian(values []float64) float64 {
	vs := present(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	sort.Float64s(vs)
	n := len(vs)
	if n%2 == 0 {
		return (vs[n/2-1] + vs[n/2]) / 2
	}
	return vs[n/2]
}

func reduceCount(values []float64) float64 {
	return float64(len(present(values)))
}

// reduceVar is the sample variance (n-1 denominator).
func reduceVar(values []float64) float64 {
	vs := present(values)
	if len(vs) < 2 {
		return math.NaN()
	}
	mean := reduceMean(vs)
	sumSq := 0.0
	for _, v := range vs {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(vs)-1)
}
