package exporter

import (
	"math"
	"strconv"
)

// formatFloat renders a value for CSV output. Missing values (NaN) become
// the empty string. A negative precision uses the shortest representation
// that round-trips.
func formatFloat(f float64, precision int) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', precision, 64)
}
