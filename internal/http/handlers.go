package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"billtrack/internal/core"
	"billtrack/internal/filter"
	"billtrack/internal/ledger"
	"billtrack/internal/log"
	"billtrack/internal/middleware/ratelimit"
	"billtrack/internal/middleware/trace"
	"billtrack/internal/services"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Sessions  int               `json:"sessions"`
	Requests  trace.Metrics     `json:"requests"`
	RateLimit ratelimit.Metrics `json:"rate_limit"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, healthResponse{
		Status:    "ok",
		Sessions:  len(s.deps.Sessions.Active()),
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
	})
}

func (s *Server) store(r *http.Request) (*ledger.Store, error) {
	return s.deps.Sessions.Get(r.Context(), principalFrom(r.Context()))
}

type summaryResponse struct {
	services.Dashboard
	Sync SyncView `json:"sync"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	window, err := ParseWindow(r.URL.Query(), s.deps.Location)
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	store, err := s.store(r)
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}

	dash := s.deps.Dashboards.Summary(store.Snapshot(), window)
	writeJSON(r.Context(), w, http.StatusOK, summaryResponse{
		Dashboard: dash,
		Sync:      NewSyncView(store.State()),
	})
}

type listResponse struct {
	Transactions []TransactionView `json:"transactions"`
	Count        int               `json:"count"`
	Sync         SyncView          `json:"sync"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListQuery(r.URL.Query(), s.deps.Location, s.deps.WeekStart)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	store, err := s.store(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	now := s.deps.Now().In(s.deps.Location)
	records := filter.Apply(store.Snapshot().Records(), now, q.Window, q.Scope, q.Sort)
	writeJSON(r.Context(), w, http.StatusOK, listResponse{
		Transactions: TransactionViews(records),
		Count:        len(records),
		Sync:         NewSyncView(store.State()),
	})
}

type transactionResponse struct {
	Transaction TransactionView `json:"transaction"`
	Sync        SyncView        `json:"sync"`
}

func (s *Server) handleUpdateDue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	raw, err := ParseDueBody(r.Body)
	if err != nil {
		writeError(w, r, log.OpUpdateDue, err)
		return
	}
	due, err := core.ParseDue(raw)
	if err != nil {
		writeError(w, r, log.OpUpdateDue, err)
		return
	}
	store, err := s.store(r)
	if err != nil {
		writeError(w, r, log.OpUpdateDue, err)
		return
	}

	if err := store.UpdateDue(r.Context(), id, due); err != nil {
		writeError(w, r, log.OpUpdateDue, err)
		return
	}

	t, ok := store.Snapshot().Find(id)
	if !ok {
		// Deleted between the write and the refresh.
		writeError(w, r, log.OpUpdateDue, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound))
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, transactionResponse{
		Transaction: NewTransactionView(t),
		Sync:        NewSyncView(store.State()),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		writeError(w, r, log.OpRefresh, err)
		return
	}
	if err := store.Refresh(r.Context()); err != nil {
		writeError(w, r, log.OpRefresh, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, NewSyncView(store.State()))
}

type exportResponse struct {
	Range  string `json:"range"`
	Period string `json:"period"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := ParseReportQuery(r.URL.Query(), s.deps.Location)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	store, err := s.store(r)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	doc := s.deps.Reports.Build(store.Snapshot().Records(), q.Period, q.Options)

	if q.Format == "sheets" {
		updated, err := s.deps.Reports.Export(r.Context(), doc, "")
		if err != nil {
			writeError(w, r, log.OpExport, err)
			return
		}
		writeJSON(r.Context(), w, http.StatusOK, exportResponse{Range: updated, Period: doc.Period})
		return
	}

	// Render fully before writing so a failure can still become a JSON error.
	var buf bytes.Buffer
	art, err := s.deps.Reports.Render(&buf, doc, q.Format)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	s.deps.Sessions.End(principal)
	w.WriteHeader(http.StatusNoContent)
}
