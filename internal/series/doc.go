// Package series downloads the pre-computed time series NEFIN publishes as
// spreadsheets and turns them into date-indexed tables.
//
// A request flows through four steps:
//
//	resolve   series key -> canonical Resource -> URL (static alias tables)
//	fetch     HTTP GET through a Fetcher
//	normalize workbook -> RawTable -> Table, date columns folded into the index
//	aggregate optional resample to month or year end with an AggFunc
//
// Every family has its own key vocabulary, date layout and period tokens:
//
//	cost-of-capital  Month/Year label       year, yearly
//	loan-fees        year, month, day       month, monthly, year, yearly
//	illiquidity      year, month            year, yearly
//	risk-factors     year, month, day       month, monthly, year, yearly
//
// Unknown keys, period tokens and function names are rejected before any
// download with an apperrors.ErrTypeLookup error. Download failures are
// ErrTypeNetwork and undecodable payloads are ErrTypeParsing.
//
// Example:
//
//	p, err := series.NewPipeline(series.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	t, err := p.RiskFactors(ctx, []string{"Market", "SMB"}, "month", "mean")
//
// Requesting a period without a function falls back to DefaultAggFunc and
// raises a Warning. Callers that need the warnings of one call can use
// WithWarningLog.
package series
