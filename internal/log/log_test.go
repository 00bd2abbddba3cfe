package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finances/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewJSONLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := ConfigFromEnv("debug", "json", ComponentLedger)
	cfg.Output = &buf

	logger := New(cfg)
	logger.Debug("hello", FieldCount, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, ComponentLedger, entry[FieldComponent])
	assert.EqualValues(t, 2, entry[FieldCount])
	assert.Equal(t, ComponentLedger, logger.Component())
}

func TestLogFields(t *testing.T) {
	tx := core.Transaction{ID: "t1", Title: "rent", Value: decimal.RequireFromString("10.5"), Type: core.Outcome, Category: core.Category{Title: "home"}}
	f := NewFields().WithTransaction(tx).WithError(errors.New("boom")).WithError(nil)

	assert.Equal(t, "t1", f[FieldTransactionID])
	assert.Equal(t, "outcome", f[FieldType])
	assert.Equal(t, "10.5", f[FieldValue])
	assert.Equal(t, "boom", f[FieldError])

	slice := NewFields().WithImport("a.csv", 3, 1, 2).ToSlice()
	require.Len(t, slice, 8)
	assert.Equal(t, FieldCategoriesCreated, slice[0])
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Output = &buf
	base := New(cfg)

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[FieldRequestID])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())
}
