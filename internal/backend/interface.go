package backend

import (
	"context"
	"time"

	"billtrack/internal/ledger"
	"billtrack/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result bundles the ports of one configured backend. Source, Writer and
// Ingest are always set; Feed is nil only when live updates are disabled.
type Result struct {
	Source ledger.Source
	Writer ledger.DueWriter
	Feed   ledger.ChangeFeed
	Ingest *services.TransactionService
	Repo   services.Repository

	// Feed name for logs and health output: amqp, polling or memory.
	FeedKind string

	Cleanup CleanupFunc
}

// Close runs Cleanup if set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// PostgreSQL specific
	PostgresURL string

	// Change feed selection: AMQP when AMQPURL is set, else polling when
	// PollInterval is positive, else in-process.
	AMQPURL      string
	AMQPExchange string
	PollInterval time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

const (
	FeedAMQP    = "amqp"
	FeedPolling = "polling"
	FeedMemory  = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
