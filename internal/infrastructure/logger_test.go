package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nefincli/internal/config"
)

// readEntries closes the global log file and decodes every JSON line in path.
func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestInitializeLogger_FileOutput(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	logFile := filepath.Join(t.TempDir(), "logs", "nefin.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	ctx := WithTraceID(context.Background(), "req-42")
	logger.DebugContext(ctx, "below level")
	logger.InfoContext(ctx, "series fetched", "family", "loan-fees", "rows", 120)

	entries := readEntries(t, logFile)
	require.Len(t, entries, 1)
	assert.Equal(t, "series fetched", entries[0]["msg"])
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "loan-fees", entries[0]["family"])
	assert.EqualValues(t, 120, entries[0]["rows"])
	assert.Equal(t, "req-42", entries[0]["trace_id"])
	assert.Contains(t, entries[0], "source")
}

func TestInitializeLogger_OnlyOnce(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	dir := t.TempDir()
	first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "file", FilePath: filepath.Join(dir, "a.log")})
	require.NoError(t, err)
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "file", FilePath: filepath.Join(dir, "b.log")})
	require.NoError(t, err)

	assert.Same(t, first, second)
	_, statErr := os.Stat(filepath.Join(dir, "b.log"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level   string
		wantMsg []string
	}{
		{level: "debug", wantMsg: []string{"debug", "info", "warn", "error"}},
		{level: "info", wantMsg: []string{"info", "warn", "error"}},
		{level: "warn", wantMsg: []string{"warn", "error"}},
		{level: "error", wantMsg: []string{"error"}},
		{level: "WARNING", wantMsg: []string{"warn", "error"}},
		{level: "bogus", wantMsg: []string{"info", "warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)
			logger.Debug("debug")
			logger.Info("info")
			logger.Warn("warn")
			logger.Error("error")

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				var entry map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(line), &entry))
				got = append(got, entry["msg"].(string))
			}
			assert.Equal(t, tt.wantMsg, got)
		})
	}
}

func TestNewLogger_TraceIDSurvivesWith(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(NewLogger(&buf, "warn"), "cli")

	ctx := WithTraceID(context.Background(), "cli-run-1")
	logger.InfoContext(ctx, "dropped")
	logger.WarnContext(ctx, "kept", "code", "agg_func_defaulted")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "cli-run-1", entry["trace_id"])
	assert.Equal(t, "cli", entry["component"])
	assert.Equal(t, "agg_func_defaulted", entry["code"])
}

func TestTraceIDContext(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))

	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	require.NotEmpty(t, id)
	assert.Len(t, id, 36)

	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)))
	assert.NotEqual(t, id, GetTraceID(EnsureTraceID(context.Background())))
	assert.Equal(t, "req-7", GetTraceID(WithTraceID(ctx, "req-7")))
}

func TestWithComponent(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	var buf bytes.Buffer
	globalLogger = NewLogger(&buf, "info")

	WithComponent(nil, "pipeline").InfoContext(WithTraceID(context.Background(), "abc"), "hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "abc", entry["trace_id"])
}
