package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"nefincli/internal/shared/testutil"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func factorServer(t *testing.T) *testutil.SpreadsheetServer {
	t.Helper()
	return testutil.NewSpreadsheetServer(t, map[string][]byte{
		"Risk Factors/Market_Factor.xls": testutil.WorkbookBytes(t,
			[]string{"year", "month", "day", "Rm_minus_Rf"},
			[][]interface{}{
				{2020, 1, 2, 0.01},
				{2020, 1, 31, 0.02},
			}),
		"Risk Factors/SMB_Factor.xls": testutil.WorkbookBytes(t,
			[]string{"year", "month", "day", "SMB"},
			[][]interface{}{
				{2020, 1, 2, 0.5},
				{2020, 1, 3, 0.25},
			}),
	})
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing family", args: nil},
		{name: "unknown format", args: []string{"-family", "loan-fees", "-format", "pdf"}},
		{name: "key and keys", args: []string{"-family", "risk-factors", "-key", "SMB", "-keys", "HML"}},
		{name: "keys outside risk factors", args: []string{"-family", "loan-fees", "-keys", "SMB"}},
		{name: "xlsx to stdout", args: []string{"-family", "loan-fees", "-format", "xlsx"}},
		{name: "positional argument", args: []string{"-family", "loan-fees", "extra"}},
		{name: "unknown flag", args: []string{"-colour"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tt.args...)
			assert.Equal(t, exitUsage, code)
			assert.Empty(t, stdout)
			assert.NotEmpty(t, stderr)
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, _, stderr := runCLI(t, "-h")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "-family")
}

func TestRun_List(t *testing.T) {
	code, stdout, _ := runCLI(t, "-list")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "FAMILY")
	assert.Contains(t, stdout, "risk-factors")
	assert.Contains(t, stdout, "Market,SMB,HML,WML,IML,Rf")
}

func TestRun_CSVToStdout(t *testing.T) {
	server := factorServer(t)

	code, stdout, stderr := runCLI(t, "-family", "risk-factors", "-key", "Mkt", "-format", "csv", "-base-url", server.BaseURL())
	require.Equal(t, exitOK, code, stderr)

	records, err := csv.NewReader(bytes.NewBufferString(stdout)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"date", "Rm_minus_Rf"},
		{"2020-01-02", "0.01"},
		{"2020-01-31", "0.02"},
	}, records)
}

func TestRun_JoinedFactorsAsJSON(t *testing.T) {
	server := factorServer(t)

	code, stdout, stderr := runCLI(t, "-family", "risk-factors", "-keys", "Market,SMB", "-format", "json", "-base-url", server.BaseURL())
	require.Equal(t, exitOK, code, stderr)

	var body struct {
		Family string `json:"family"`
		Data   struct {
			Columns []string          `json:"columns"`
			Rows    []json.RawMessage `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &body))
	assert.Equal(t, "risk-factors", body.Family)
	assert.Equal(t, []string{"Rm_minus_Rf", "SMB"}, body.Data.Columns)
	assert.Len(t, body.Data.Rows, 3)
}

func TestRun_TableWithDefaultedFunction(t *testing.T) {
	server := factorServer(t)

	code, stdout, stderr := runCLI(t, "-family", "risk-factors", "-key", "SMB", "-agg", "month", "-precision", "2", "-base-url", server.BaseURL())
	require.Equal(t, exitOK, code, stderr)

	assert.Contains(t, stdout, "2020-01-31")
	assert.Contains(t, stdout, "0.25")
	assert.Equal(t, 1, strings.Count(stderr, "agg_func_defaulted"), "the warning is logged once")
}

func TestRun_XLSXToFile(t *testing.T) {
	server := factorServer(t)
	out := filepath.Join(t.TempDir(), "nested", "market.xlsx")

	code, stdout, stderr := runCLI(t, "-family", "risk-factors", "-key", "Market", "-format", "xlsx", "-out", out, "-base-url", server.BaseURL())
	require.Equal(t, exitOK, code, stderr)
	assert.Empty(t, stdout)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"date", "Rm_minus_Rf"}, rows[0])
}

func TestRun_Failures(t *testing.T) {
	server := factorServer(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown key", args: []string{"-family", "risk-factors", "-key", "Beta"}},
		{name: "unknown family", args: []string{"-family", "bonds"}},
		{name: "unknown period", args: []string{"-family", "loan-fees", "-agg", "week"}},
		{name: "missing resource", args: []string{"-family", "loan-fees"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, append(tt.args, "-base-url", server.BaseURL())...)
			assert.Equal(t, exitError, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, "nefin:")
		})
	}

	assert.Equal(t, 1, server.Hits("Predictability/loan_fees.xls"))
	assert.Zero(t, server.Hits("Risk Factors/Market_Factor.xls"))
}
