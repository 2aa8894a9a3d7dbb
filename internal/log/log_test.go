package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewJSONLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})
	logger.WithComponent(ComponentReport).Info("built", FieldYear, 2024)
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry[FieldComponent] != ComponentReport || entry[FieldYear] != float64(2024) {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithTransaction("tx-1", "INCOME", 1000, "HIGH").
		WithReport(2024, 0).
		WithError(nil)

	if f[FieldTransactionID] != "tx-1" || f[FieldAmountCents] != int64(1000) {
		t.Errorf("transaction fields missing: %v", f)
	}
	if _, ok := f[FieldQuarter]; ok {
		t.Error("quarter 0 should not be logged")
	}
	if _, ok := f[FieldError]; ok {
		t.Error("nil error should not be logged")
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Errorf("ToSlice length mismatch")
	}

	f.WithError(errors.New("boom"))
	if f[FieldError] != "boom" {
		t.Errorf("error field = %v", f[FieldError])
	}
}

func TestComponentMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatText, Output: &buf})

	var got *Logger
	h := ComponentMiddleware(ComponentHTTP)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.InfoContext(r.Context(), "inside")
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := NewContext(req.Context(), logger.With(FieldRequestID, "req_1"))
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("expected http component logger, got %+v", got)
	}
	out := buf.String()
	if !strings.Contains(out, "request_id=req_1") || !strings.Contains(out, "component=http") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected default logger, got %+v", l)
	}
}
