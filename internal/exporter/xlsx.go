package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/xuri/excelize/v2"

	"nefincli/internal/series"
)

// DefaultSheetName is used when WriteXLSX is given no sheet name.
const DefaultSheetName = "Series"

const xlsxDateFormat = "yyyy-mm-dd"

// WriteXLSX writes t as a single-sheet workbook. The first column holds
// real date cells; missing values are left blank.
func WriteXLSX(w io.Writer, t *series.Table, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	dateFmt := xlsxDateFormat
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, 1, 12); err != nil {
		return fmt.Errorf("failed to size date column: %w", err)
	}

	header := make([]interface{}, 0, t.Width()+1)
	header = append(header, excelize.Cell{StyleID: headerStyle, Value: DateHeader})
	for _, c := range t.Columns {
		header = append(header, excelize.Cell{StyleID: headerStyle, Value: c})
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	row := make([]interface{}, t.Width()+1)
	for r, d := range t.Index {
		row[0] = excelize.Cell{StyleID: dateStyle, Value: d}
		for c := 0; c < t.Width(); c++ {
			if v := t.Value(r, c); math.IsNaN(v) {
				row[c+1] = nil
			} else {
				row[c+1] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	return f.Write(w)
}

// WriteXLSXFile writes t to path, creating parent directories as needed.
func WriteXLSXFile(path string, t *series.Table, sheet string) error {
	slog.Info("Writing XLSX file",
		slog.String("file_path", path),
		slog.String("source", string(t.Source)),
		slog.Int("record_count", t.Len()))

	return writeFile(path, func(w io.Writer) error {
		return WriteXLSX(w, t, sheet)
	})
}
