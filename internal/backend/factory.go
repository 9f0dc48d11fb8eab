package backend

import (
	"context"
	"fmt"
	"log/slog"

	"billtrack/internal/amqp"
	"billtrack/internal/ledger"
	"billtrack/internal/log"
	"billtrack/internal/services"
	"billtrack/internal/storage"
	"billtrack/internal/storage/memory"
	"billtrack/internal/storage/postgres"
)

// amqpDialAttempts bounds broker connection attempts at startup.
const amqpDialAttempts = 3

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.openRepository(ctx, config)
	if err != nil {
		return nil, err
	}

	feed, publisher, kind, stopFeed := f.createFeed(ctx, config, repo)
	ingest := services.NewTransactionService(repo, publisher)

	f.logger.InfoContext(ctx, "Initialized backend",
		log.FieldBackend, config.Type.String(),
		"feed", kind)

	return &Result{
		Source:   repo,
		Writer:   ingest,
		Feed:     feed,
		Ingest:   ingest,
		Repo:     repo,
		FeedKind: kind,
		Cleanup: func() error {
			if stopFeed != nil {
				_ = stopFeed()
			}
			return ingest.Close()
		},
	}, nil
}

func (f *DefaultFactory) openRepository(ctx context.Context, config Config) (services.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Opened SQLite repository", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.Open(ctx, config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Opened PostgreSQL repository")
		return repo, nil
	case MemoryBackend:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createFeed picks the change feed and the matching publisher. A broker that
// cannot be reached degrades to the next option instead of failing startup.
func (f *DefaultFactory) createFeed(ctx context.Context, config Config, repo services.Repository) (ledger.ChangeFeed, services.Publisher, string, func() error) {
	if config.AMQPURL != "" {
		client, err := amqp.DialWithRetry(ctx, config.AMQPURL, config.AMQPExchange, amqpDialAttempts)
		if err == nil {
			f.logger.InfoContext(ctx, "Initialized AMQP change feed", "exchange", config.AMQPExchange)
			return client, client, FeedAMQP, nil
		}
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, falling back",
			log.FieldError, err)
	}

	if config.PollInterval > 0 {
		poller := services.NewPollingFeed(repo, services.PollingFeedConfig{Interval: config.PollInterval})
		if err := poller.Start(context.Background()); err != nil {
			f.logger.WarnContext(ctx, "Failed to start polling feed", log.FieldError, err)
		} else {
			return poller, nil, FeedPolling, poller.Close
		}
	}

	// In-process only: sees writes made through this process.
	feed := memory.NewFeed()
	return feed, feed, FeedMemory, nil
}
