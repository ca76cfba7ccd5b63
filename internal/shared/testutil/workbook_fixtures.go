package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"
)

// WorkbookBytes builds an .xlsx workbook whose first sheet holds header
// followed by rows, and returns the encoded file.
func WorkbookBytes(t *testing.T, header []string, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		t.Fatalf("failed to write header row: %v", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			t.Fatalf("failed to compute cell name: %v", err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("failed to write row %d: %v", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to encode workbook: %v", err)
	}
	return buf.Bytes()
}

// SpreadsheetServer is an httptest server that serves fixed files by path
// and records how often each path was requested.
type SpreadsheetServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
}

// NewSpreadsheetServer starts a server for files keyed by path relative to
// the server root. Keys may be URL-escaped ("Risk%20Factors/SMB_Factor.xls").
// Unknown paths answer 404. The server is closed when the test ends.
func NewSpreadsheetServer(t *testing.T, files map[string][]byte) *SpreadsheetServer {
	t.Helper()

	s := &SpreadsheetServer{
		files: make(map[string][]byte, len(files)),
		hits:  make(map[string]int),
	}
	for path, body := range files {
		s.files[normalizePath(path)] = body
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Server.Close)
	return s
}

func (s *SpreadsheetServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	body, ok := s.files[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.ms-excel")
	w.Write(body)
}

// BaseURL returns the server root with a trailing slash.
func (s *SpreadsheetServer) BaseURL() string {
	return s.Server.URL + "/"
}

// Hits returns how many requests reached path.
func (s *SpreadsheetServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[normalizePath(path)]
}

// TotalHits returns the number of requests served, including 404s.
func (s *SpreadsheetServer) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

func normalizePath(path string) string {
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
