package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmitra/portalctl/internal/errors"
)

func newBufferLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(Config{
		Level:       level,
		Format:      format,
		Output:      NewOutput(buf),
		ServiceName: "portalctl",
	}), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn, FormatText)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown", "route", "/users")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "route=/users")
	assert.Contains(t, buf.String(), "service=portalctl")
}

func TestWithErrorPortalError(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	err := errors.NewAPIError(422, "phone already registered").WithSuggestion("use another phone")
	logger.WithError(fmt.Errorf("create customer: %w", err)).Info("request failed")

	entry := decodeLine(t, buf)
	assert.Equal(t, "phone already registered", entry["error"])
	assert.Equal(t, "API-003", entry["error_code"])
	assert.EqualValues(t, 422, entry["status"])
	assert.NotNil(t, entry["suggestions"])
}

func TestWithErrorPlain(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.WithError(fmt.Errorf("boom")).Info("failed")
	entry := decodeLine(t, buf)
	assert.Equal(t, "boom", entry["error"])
	assert.Nil(t, entry["error_code"])

	assert.Same(t, logger, logger.WithError(nil))
}

func TestLogErrorIncludesDocs(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.LogErrorContext(context.Background(), errors.NewAuthRequiredError())
	entry := decodeLine(t, buf)
	assert.Equal(t, "operation failed", entry["msg"])
	assert.Equal(t, "AUTH-001", entry["error_code"])
	assert.True(t, strings.HasPrefix(entry["docs_url"].(string), "https://"))

	buf.Reset()
	logger.LogError(nil)
	assert.Empty(t, buf.String())
}

func TestWithGroup(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.WithGroup("import").Info("validated", "rows", 12)
	entry := decodeLine(t, buf)
	group, ok := entry["import"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 12, group["rows"])
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), LevelWarn))
	logger.Error("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Level {
	t.Helper()
	l, err := ParseLevel(s)
	require.NoError(t, err)
	return l
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("console")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}
