package exporter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"nefincli/internal/series"
)

// WriteText writes t as aligned columns for terminals. Missing values are
// shown as "-".
func WriteText(w io.Writer, t *series.Table, precision int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := append([]string{DateHeader}, t.Columns...)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")+"\t"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	cells := make([]string, len(header))
	for r, d := range t.Index {
		cells[0] = d.Format(series.DateFormat)
		for c := 0; c < t.Width(); c++ {
			if cells[c+1] = formatFloat(t.Value(r, c), precision); cells[c+1] == "" {
				cells[c+1] = "-"
			}
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t"); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r, err)
		}
	}

	return tw.Flush()
}
