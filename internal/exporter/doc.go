// Package exporter writes series tables to files and terminals.
//
// Formats:
//
// CSV: a "date" column followed by the table's value columns. Missing
// values are empty cells. An optional UTF-8 BOM helps Excel recognise the
// encoding.
//
// XLSX: a single-sheet workbook built with excelize. The date column holds
// real date cells formatted yyyy-mm-dd.
//
// Text: right-aligned columns via text/tabwriter for the CLI.
//
// Example usage:
//
//	t, err := pipeline.RiskFactors(ctx, []string{"Market", "SMB"}, "month", "mean")
//	if err != nil {
//		return err
//	}
//	err = exporter.WriteCSVFile("out/factors.csv", t, exporter.DefaultCSVOptions())
package exporter
