package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"billtrack/internal/core"
	"billtrack/internal/log"
)

// Repository is the remote collection as seen by the ingestion side.
type Repository interface {
	Fetch(ctx context.Context, principal string) ([]core.Transaction, error)
	Get(ctx context.Context, principal, id string) (core.Transaction, error)
	Insert(ctx context.Context, t core.Transaction) error
	UpdateDue(ctx context.Context, principal, id string, due decimal.Decimal) error
	Delete(ctx context.Context, principal, id string) error
	Fingerprint(ctx context.Context, principal string) (string, error)
	Close() error
}

// Publisher announces a committed change to subscribers of its principal.
type Publisher interface {
	Publish(ctx context.Context, change core.Change) error
}

// TransactionService orchestrates writes across the repository and the change
// publisher. It is the ledger.DueWriter handed to ledger stores.
type TransactionService struct {
	repo      Repository
	publisher Publisher
	now       func() time.Time
}

// NewTransactionService wires repo and publisher. publisher may be nil, in
// which case writes are not announced.
func NewTransactionService(repo Repository, publisher Publisher) *TransactionService {
	return &TransactionService{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

// Create stores t for principal and returns it with its assigned id.
func (s *TransactionService) Create(ctx context.Context, principal string, t core.Transaction) (core.Transaction, error) {
	if err := core.ValidatePrincipal(principal); err != nil {
		return core.Transaction{}, err
	}

	t.UserID = principal
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	t.Title = strings.TrimSpace(t.Title)
	t.Amount = t.Amount.Round(2)
	t.Due = t.Due.Round(2)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	// Save first; the notification is best effort
	if err := s.repo.Insert(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogTransactionCreated(ctx, principal, t.ID, string(t.Kind), t.Amount.StringFixed(2))

	s.publish(ctx, principal, t.ID, core.OpInsert)
	return t, nil
}

// Delete removes one of principal's transactions.
func (s *TransactionService) Delete(ctx context.Context, principal, id string) error {
	if err := core.ValidatePrincipal(principal); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: transaction id is required", core.ErrValidation)
	}

	if err := s.repo.Delete(ctx, principal, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		log.FieldComponent, log.ComponentStorage,
		log.FieldOperation, log.OpDelete,
		log.FieldPrincipal, principal,
		log.FieldTxID, id)

	s.publish(ctx, principal, id, core.OpDelete)
	return nil
}

// UpdateDue sets the outstanding amount of one transaction and announces it.
func (s *TransactionService) UpdateDue(ctx context.Context, principal, id string, due decimal.Decimal) error {
	if err := core.ValidatePrincipal(principal); err != nil {
		return err
	}
	if due.IsNegative() {
		return core.ErrNegativeDue
	}

	if err := s.repo.UpdateDue(ctx, principal, id, due.Round(2)); err != nil {
		return fmt.Errorf("update due: %w", err)
	}

	s.publish(ctx, principal, id, core.OpUpdate)
	return nil
}

func (s *TransactionService) publish(ctx context.Context, principal, id string, op core.ChangeOp) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No change publisher configured, skipping notification",
			log.FieldPrincipal, principal,
			log.FieldTxID, id)
		return
	}

	change := core.Change{UserID: principal, ID: id, Op: op, At: s.now()}
	if err := s.publisher.Publish(ctx, change); err != nil {
		// The write is committed; subscribers catch up on their next refresh
		slog.ErrorContext(ctx, "Failed to publish change",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldPrincipal, principal,
			log.FieldTxID, id,
			"op", string(op),
			log.FieldError, err)
	}
}

// Close releases the repository and, when it holds a connection, the publisher.
func (s *TransactionService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %v", errs)
	}
	return nil
}
