// Package shared groups helpers used across the nefin packages that belong to
// no single layer.
//
// The testutil subpackage provides:
//
//   - BufferedSlogHandler and NewTestLogger for asserting on structured logs
//   - WorkbookBytes for building .xlsx fixtures with excelize
//   - SpreadsheetServer, an httptest server that serves those fixtures and
//     counts requests per path
//
// Example usage:
//
//	func TestFetch(t *testing.T) {
//	    body := testutil.WorkbookBytes(t, []string{"year", "month", "day", "SMB"}, rows)
//	    srv := testutil.NewSpreadsheetServer(t, map[string][]byte{
//	        "Risk%20Factors/SMB_Factor.xls": body,
//	    })
//	    // point the pipeline at srv.BaseURL()
//	}
package shared
