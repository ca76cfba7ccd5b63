package series

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Workbook container signatures.
var (
	magicBIFF = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	magicZIP  = []byte{'P', 'K', 0x03, 0x04}
)

// ReadWorkbook decodes the first worksheet of a legacy .xls or an .xlsx
// workbook. The first non-blank row is the header; every later row is data.
func ReadWorkbook(data []byte) (*RawTable, error) {
	var (
		rows [][]string
		err  error
	)
	switch {
	case bytes.HasPrefix(data, magicBIFF):
		rows, err = readXLS(data)
	case bytes.HasPrefix(data, magicZIP):
		rows, err = readXLSX(data)
	default:
		return nil, parsingError(ErrUnsupportedFormat, "payload is neither .xls nor .xlsx (%d bytes)", len(data))
	}
	if err != nil {
		return nil, err
	}
	return splitHeader(rows)
}

func splitHeader(rows [][]string) (*RawTable, error) {
	for i, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return &RawTable{Header: row, Rows: rows[i+1:]}, nil
			}
		}
	}
	return nil, parsingError(ErrEmptySheet, "first worksheet is empty")
}

func readXLS(data []byte) (rows [][]string, err error) {
	// The BIFF decoder panics on some truncated streams.
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = parsingError(ErrUnsupportedFormat, "corrupt .xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, parsingError(err, "open .xls workbook")
	}
	if wb.NumSheets() == 0 {
		return nil, parsingError(ErrEmptySheet, "workbook has no worksheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, parsingError(ErrEmptySheet, "workbook has no worksheets")
	}

	rows = make([][]string, 0, int(sheet.MaxRow)+1)
	// Cells written without a ROW record report no columns of their own,
	// so every row is read at least as wide as the widest row seen.
	width := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		width = max(width, row.LastCol())
		cells := make([]string, width)
		for j := row.FirstCol(); j < width; j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// xlsRow returns nil for a row the sheet never mentions; the decoder
// dereferences its own missing entry.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, parsingError(err, "open .xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, parsingError(ErrEmptySheet, "workbook has no worksheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, parsingError(err, "read worksheet %q", sheets[0])
	}
	return rows, nil
}

// ReadTable decodes a workbook and normalizes it with the given layout.
func ReadTable(data []byte, layout DateLayout) (*Table, error) {
	raw, err := ReadWorkbook(data)
	if err != nil {
		return nil, err
	}
	t, err := Normalize(raw, layout)
	if err != nil {
		return nil, fmt.Errorf("normalize worksheet: %w", err)
	}
	return t, nil
}
