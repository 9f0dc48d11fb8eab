package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/config"
	"billtrack/internal/core"
)

func TestBackendType_IsValid(t *testing.T) {
	tests := []struct {
		bt   BackendType
		want bool
	}{
		{MemoryBackend, true},
		{SQLiteBackend, true},
		{PostgresBackend, true},
		{BackendType("sheets"), false},
		{BackendType(""), false},
	}
	for _, tt := range tests {
		if got := tt.bt.IsValid(); got != tt.want {
			t.Errorf("BackendType(%q).IsValid() = %v, want %v", tt.bt, got, tt.want)
		}
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}

	cfg := &config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/x.db",
		AMQPURL:      "amqp://localhost/",
		AMQPExchange: "billtrack",
		PollInterval: 30 * time.Second,
	}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if got.Type != SQLiteBackend || got.SQLiteDBPath != "/tmp/x.db" || got.PollInterval != 30*time.Second {
		t.Errorf("FromAppConfig() = %+v", got)
	}

	cfg.DataBackend = "sheets"
	if _, err := FromAppConfig(cfg); err == nil {
		t.Error("FromAppConfig() should reject unknown backend")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path is required"},
		{"postgres without url", Config{Type: PostgresBackend}, "PostgreSQL URL is required"},
		{"amqp without exchange", Config{Type: MemoryBackend, AMQPURL: "amqp://x/"}, "AMQP exchange is required"},
		{"negative poll", Config{Type: MemoryBackend, PollInterval: -time.Second}, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_MemoryBackendIsLive(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	if res.FeedKind != FeedMemory {
		t.Errorf("FeedKind = %q, want %q", res.FeedKind, FeedMemory)
	}

	fired := 0
	unsubscribe, err := res.Feed.Subscribe(ctx, "alice", func() { fired++ })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsubscribe()

	_, err = res.Ingest.Create(ctx, "alice", core.Transaction{
		Title:      "Salary",
		Amount:     decimal.NewFromInt(1000),
		Kind:       core.Income,
		OccurredAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if fired != 1 {
		t.Errorf("feed fired %d times, want 1", fired)
	}

	records, err := res.Source.Fetch(ctx, "alice")
	if err != nil || len(records) != 1 {
		t.Errorf("Fetch() = %d records, %v", len(records), err)
	}
}

func TestFactory_SQLiteWithPolling(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "billtrack.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: dbPath,
		PollInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if res.FeedKind != FeedPolling {
		t.Errorf("FeedKind = %q, want %q", res.FeedKind, FeedPolling)
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestFactory_RejectsInvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"}); err == nil {
		t.Error("CreateBackend() should reject unknown backend")
	}
}
