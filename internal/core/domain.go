package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// UntitledLabel is shown wherever a transaction has no title.
const UntitledLabel = "Untitled"

type (
	// Kind classifies a transaction as money coming in or going out.
	Kind string

	// Transaction is a single ledger entry owned by exactly one principal.
	Transaction struct {
		ID            string
		UserID        string
		Title         string
		Amount        decimal.Decimal // strictly positive, 2 decimals
		Kind          Kind
		Note          string
		OccurredAt    time.Time
		AttachmentRef string          // opaque URL, may be empty
		Due           decimal.Decimal // outstanding amount, 0 means settled
	}

	// ChangeOp names the kind of remote mutation behind a change notification.
	ChangeOp string

	// Change is a notification that the remote collection changed for a principal.
	// It carries no payload the ledger relies on; receivers refetch.
	Change struct {
		UserID string
		ID     string
		Op     ChangeOp
		At     time.Time
	}
)

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrSyncFailure            = errors.New("sync failure")
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
)

var (
	ErrInvalidAmount = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrNegativeDue   = fmt.Errorf("%w: due must not be negative", ErrValidation)
	ErrInvalidKind   = fmt.Errorf("%w: type must be income or expense", ErrValidation)
	ErrMissingDate   = fmt.Errorf("%w: date is required", ErrValidation)
	ErrTitleTooLong  = fmt.Errorf("%w: title too long (max 200 characters)", ErrValidation)
)

// ParseKind accepts "income" or "expense" in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Income, Expense:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Label returns the capitalized kind, as printed in reports.
func (k Kind) Label() string {
	switch k {
	case Income:
		return "Income"
	case Expense:
		return "Expense"
	default:
		return string(k)
	}
}

func (t Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Due.IsNegative() {
		return ErrNegativeDue
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if t.OccurredAt.IsZero() {
		return ErrMissingDate
	}
	if len(t.Title) > 200 {
		return ErrTitleTooLong
	}
	return nil
}

// DisplayTitle returns the title or UntitledLabel when it is blank.
func (t Transaction) DisplayTitle() string {
	if strings.TrimSpace(t.Title) == "" {
		return UntitledLabel
	}
	return t.Title
}

// HasDue reports whether any amount is still outstanding.
func (t Transaction) HasDue() bool {
	return t.Due.IsPositive()
}

// ValidatePrincipal rejects an empty principal id.
func ValidatePrincipal(principal string) error {
	if strings.TrimSpace(principal) == "" {
		return ErrAuthenticationRequired
	}
	return nil
}
