package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestLogger_JSONIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentLedger, Output: &buf})

	logger.Info("refreshed", "records", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry[FieldComponent] != ComponentLedger {
		t.Errorf("component = %v, want %s", entry[FieldComponent], ComponentLedger)
	}
	if entry["records"] != float64(3) {
		t.Errorf("records = %v, want 3", entry["records"])
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf, Component: ComponentApp})

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing")
	}
}

func TestNewContextAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf, Component: ComponentHTTP}).
		With(FieldRequestID, "req-1")

	got := FromContext(NewContext(context.Background(), logger))
	got.Info("inside")

	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("FromContext() = %v, want http logger", got)
	}
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("log output %q missing request id", buf.String())
	}

	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("FromContext() without logger should fall back to default")
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Component: ComponentReport}))

	sl.LogError(context.Background(), "export failed", errors.New("disk full"), OpExport, NewFields().WithPrincipal("alice"))

	out := buf.String()
	for _, want := range []string{"export failed", "disk full", "operation=export", "principal=alice", "component=report"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
