// Package storage persists transactions in SQLite. Amounts are stored as
// decimal strings and dates as fixed-width UTC timestamps so that text
// ordering matches chronological ordering.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
	"billtrack/internal/log"

	_ "modernc.org/sqlite"
)

// TimeLayout is the on-disk date format.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// nowSQL stamps created_at and updated_at. It matches the column defaults of
// the migrations so MAX(updated_at) compares like with like.
const nowSQL = `strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const selectColumns = `id, user_id, title, amount, type, description, date, COALESCE(bill_url, ''), due`

// Fetch implements ledger.Source.
func (r *SQLiteRepository) Fetch(ctx context.Context, principal string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`,
		principal)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Get returns a single transaction owned by principal.
func (r *SQLiteRepository) Get(ctx context.Context, principal, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE user_id = ? AND id = ?`,
		principal, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return t, err
}

// Insert stores a validated transaction.
func (r *SQLiteRepository) Insert(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, title, amount, type, description, date, bill_url, due)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)`,
		t.ID, t.UserID, t.Title, t.Amount.StringFixed(2), string(t.Kind), t.Note,
		t.OccurredAt.UTC().Format(TimeLayout), t.AttachmentRef, t.Due.StringFixed(2))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		log.FieldComponent, log.ComponentStorage,
		"id", t.ID,
		"type", t.Kind,
		"amount", t.Amount.StringFixed(2))
	return nil
}

// UpdateDue implements ledger.DueWriter.
func (r *SQLiteRepository) UpdateDue(ctx context.Context, principal, id string, due decimal.Decimal) error {
	if due.IsNegative() {
		return core.ErrNegativeDue
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET due = ?, updated_at = `+nowSQL+` WHERE user_id = ? AND id = ?`,
		due.StringFixed(2), principal, id)
	if err != nil {
		return fmt.Errorf("update due: %w", err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, principal, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND id = ?`, principal, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res, id)
}

// Fingerprint summarizes principal's rows so pollers can detect changes
// without fetching them.
func (r *SQLiteRepository) Fingerprint(ctx context.Context, principal string) (string, error) {
	var (
		count  int64
		latest sql.NullString
		dueSum sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(updated_at), TOTAL(CAST(due AS REAL)) FROM transactions WHERE user_id = ?`,
		principal).Scan(&count, &latest, &dueSum)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fmt.Sprintf("%d|%s|%.2f", count, latest.String, dueSum.Float64), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t              core.Transaction
		amount, due    string
		kind, occurred string
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.Title, &amount, &kind, &t.Note, &occurred, &t.AttachmentRef, &due); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan transaction: %w", err)
	}

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("transaction %s: parse amount %q: %w", t.ID, amount, err)
	}
	if t.Due, err = decimal.NewFromString(due); err != nil {
		return t, fmt.Errorf("transaction %s: parse due %q: %w", t.ID, due, err)
	}
	if t.OccurredAt, err = parseTime(occurred); err != nil {
		return t, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.Kind = core.Kind(kind)
	return t, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q", s)
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}
