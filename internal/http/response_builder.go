package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/ledger"
	"billtrack/internal/log"
	"billtrack/internal/services"
)

// TransactionView is the wire form of a transaction. Money travels as
// two-decimal strings.
type TransactionView struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Amount     string    `json:"amount"`
	Type       core.Kind `json:"type"`
	Note       string    `json:"note,omitempty"`
	Date       time.Time `json:"date"`
	Attachment string    `json:"attachment,omitempty"`
	Due        string    `json:"due"`
}

func NewTransactionView(t core.Transaction) TransactionView {
	return TransactionView{
		ID:         t.ID,
		Title:      t.DisplayTitle(),
		Amount:     t.Amount.StringFixed(2),
		Type:       t.Kind,
		Note:       t.Note,
		Date:       t.OccurredAt,
		Attachment: t.AttachmentRef,
		Due:        t.Due.StringFixed(2),
	}
}

func TransactionViews(records []core.Transaction) []TransactionView {
	out := make([]TransactionView, len(records))
	for i, r := range records {
		out[i] = NewTransactionView(r)
	}
	return out
}

// SyncView reports the ledger's sync status alongside data.
type SyncView struct {
	Version     uint64     `json:"version"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
	Loading     bool       `json:"loading"`
	Error       string     `json:"error,omitempty"`
}

func NewSyncView(s ledger.State) SyncView {
	v := SyncView{Version: s.Version, Loading: s.Loading}
	if !s.RefreshedAt.IsZero() {
		at := s.RefreshedAt
		v.RefreshedAt = &at
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to write response", log.FieldError, err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrExportDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrSyncFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return log.ErrorTypeAuth
	case http.StatusBadRequest:
		return log.ErrorTypeValidation
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return log.ErrorTypeSync
	default:
		return log.ErrorTypeInternal
	}
}

// writeError logs err and writes {"error": ...}. Internal errors are not
// echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status := statusFor(err)

	fields := log.NewFields().
		WithPrincipal(principalFrom(ctx)).
		WithErrorType(errorType(status))
	logger := log.NewStructuredLogger(log.FromContext(ctx))
	if status >= 500 {
		logger.LogError(ctx, "Request failed", err, op, fields)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(ctx, w, status, errorBody{Error: msg})
}
