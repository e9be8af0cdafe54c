package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(LogConfig{Level: "INFO", Format: "json", Output: &buf}))

	Info(context.Background(), "batch finished", "records", 3)
	Debug(context.Background(), "hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "batch finished", rec["msg"])
	assert.EqualValues(t, 3, rec["records"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(LogConfig{Level: "ERROR", Format: "text", Output: &buf}))

	Warn(context.Background(), "dropped")
	ErrorWithErr(context.Background(), "kept", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "boom")
}

func TestZapFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(LogConfig{Level: "INFO", Format: "zap", Output: &buf}))

	Resolution(context.Background(), "RU000A0JX0J2", "", "")
	Sync()

	assert.Contains(t, buf.String(), "ISIN unresolved")
	assert.Contains(t, buf.String(), "RU000A0JX0J2")
}

func TestOperationTimerWithoutTracing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(LogConfig{Level: "DEBUG", Format: "text", DetailedLogging: true, Output: &buf}))

	op := StartOperation(context.Background(), "fetch", "isin", "US0378331005")
	op.End("rows", 2)

	assert.Contains(t, buf.String(), "Operation completed")
	assert.Contains(t, buf.String(), "duration_ms")
	assert.Contains(t, buf.String(), "source")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, parseLogLevel("debug"), parseLogLevel("DEBUG"))
	assert.Equal(t, parseLogLevel("warning"), parseLogLevel("WARN"))
	assert.Equal(t, parseLogLevel("nonsense"), parseLogLevel("INFO"))
}
