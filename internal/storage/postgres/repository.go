// Package postgres stores transactions in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"billtrack/internal/core"
	"billtrack/internal/log"
)

type Repository struct {
	pool *pgxpool.Pool
}

// Open connects, pings and migrates the database at databaseURL.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

const selectColumns = `id, user_id, title, amount::text, type, description, date, COALESCE(bill_url, ''), due::text`

func (r *Repository) Fetch(ctx context.Context, principal string) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE user_id = $1 ORDER BY date DESC, created_at DESC`,
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

func (r *Repository) Get(ctx context.Context, principal, id string) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE user_id = $1 AND id = $2`,
		principal, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return t, err
}

func (r *Repository) Insert(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transactions (id, user_id, title, amount, type, description, date, bill_url, due)
		 VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, NULLIF($8, ''), $9::text::numeric)`,
		t.ID, t.UserID, t.Title, t.Amount.StringFixed(2), string(t.Kind), t.Note,
		t.OccurredAt, t.AttachmentRef, t.Due.StringFixed(2))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to PostgreSQL",
		log.FieldComponent, log.ComponentStorage,
		"id", t.ID,
		"type", t.Kind,
		"amount", t.Amount.StringFixed(2))
	return nil
}

func (r *Repository) UpdateDue(ctx context.Context, principal, id string, due decimal.Decimal) error {
	if due.IsNegative() {
		return core.ErrNegativeDue
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions SET due = $3::text::numeric, updated_at = now() WHERE user_id = $1 AND id = $2`,
		principal, id, due.StringFixed(2))
	if err != nil {
		return fmt.Errorf("update due: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, principal, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND id = $2`, principal, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) Fingerprint(ctx context.Context, principal string) (string, error) {
	var (
		count  int64
		latest *time.Time
		dueSum string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(updated_at), COALESCE(SUM(due), 0)::text FROM transactions WHERE user_id = $1`,
		principal).Scan(&count, &latest, &dueSum)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	stamp := ""
	if latest != nil {
		stamp = latest.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%d|%s|%s", count, stamp, dueSum), nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t           core.Transaction
		amount, due string
		kind        string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &amount, &kind, &t.Note, &t.OccurredAt, &t.AttachmentRef, &due); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	t.Kind = core.Kind(kind)
	return t, nil
}
