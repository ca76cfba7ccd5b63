package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"nefincli/internal/series"
)

// DateHeader is the name of the index column in exported files.
const DateHeader = "date"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures CSV writing behavior
type CSVOptions struct {
	BOMPrefix  bool   // Add UTF-8 BOM for Excel compatibility
	Precision  int    // Digits after the decimal point; -1 for shortest
	DateFormat string // Defaults to series.DateFormat
	Comma      rune   // Defaults to ','
}

// DefaultCSVOptions returns options producing plain, lossless CSV.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Precision: -1, DateFormat: series.DateFormat, Comma: ','}
}

// WriteCSV writes t as CSV: a "date" column followed by the table's columns.
// Missing values are written as empty cells.
func WriteCSV(w io.Writer, t *series.Table, opts CSVOptions) error {
	if opts.DateFormat == "" {
		opts.DateFormat = series.DateFormat
	}

	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if opts.Comma != 0 {
		writer.Comma = opts.Comma
	}

	header := append([]string{DateHeader}, t.Columns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, len(header))
	for r, d := range t.Index {
		record[0] = d.Format(opts.DateFormat)
		for c := 0; c < t.Width(); c++ {
			record[c+1] = formatFloat(t.Value(r, c), opts.Precision)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes t to path, creating parent directories as needed.
func WriteCSVFile(path string, t *series.Table, opts CSVOptions) error {
	slog.Info("Writing CSV file",
		slog.String("file_path", path),
		slog.String("source", string(t.Source)),
		slog.Int("record_count", t.Len()))

	return writeFile(path, func(w io.Writer) error {
		return WriteCSV(w, t, opts)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
