package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"saldi/internal/log"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
	readyTimeout       = 5 * time.Second
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.clock().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the ledger backend and reports what the accessor has
// been hiding.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if err := s.ready(ctx); err != nil {
		checks["ledger"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledger"] = "ok"
	}
	if s.ledger == nil {
		checks["writes"] = "read_only"
	} else {
		checks["writes"] = "enabled"
	}
	stats := s.dash.LedgerStats()
	checks["ledger_stats"] = map[string]int64{
		"rejected_records": stats.Rejected,
		"store_failures":   stats.Failures,
	}
	checks["rate_limiter"] = map[string]int{"active_clients": s.rateLimiter.activeClients()}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": s.clock().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := s.dash.LedgerStats()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("ledger_rejected_records_total", "counter", "Ledger records dropped by validation", stats.Rejected)
	metric("ledger_store_failures_total", "counter", "Ledger reads that failed and rendered empty", stats.Failures)
	metric("rate_limit_hits_total", "counter", "Writes refused by the rate limiter", s.security.rateLimitHits.Load())
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", s.security.suspiciousRequests.Load())
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", s.rateLimiter.activeClients())
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(s.now().Sub(s.started).Seconds()))
}

func (s *Server) handleConti(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(toContiDTO(s.dash.Conti(r.Context()))).Write(w)
}

func (s *Server) handleLibri(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(toLibriDTO(s.dash.Libri(r.Context()))).Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r.URL.Query(), s.clock())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.dash.History(r.Context(), sel)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Body(toHistoryDTO(sel.View, view)).Write(w)
}

func (s *Server) handleMultiHistory(w http.ResponseWriter, r *http.Request) {
	ms, err := parseMultiSelection(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.dash.MultiHistory(r.Context(), ms)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Body(toMultiHistoryDTO(ms.View, view)).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sel, err := parseSelection(query, s.clock())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	trailing, err := parseIntParam(query, "trailing", 0, 1, 24)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.dash.Summary(r.Context(), sel, sel.Anchor, trailing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Body(toSummaryDTO(sel.View, view)).Write(w)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sel, err := parseSelection(query, s.clock())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := parseIntParam(query, "limit", defaultRecentLimit, 1, maxRecentLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := parseIntParam(query, "offset", 0, 0, 1<<30)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.dash.Recent(r.Context(), sel, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Body(toRecentDTO(sel.View, view, limit, offset)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		MethodNotAllowedError(http.MethodGet, "ledger is read-only").Write(w)
		return
	}
	t, err := parseTransaction(NewRequestBodyParser(w, r), s.clock())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err = s.ledger.Record(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+t.ID).
		Body(toTransactionDTO(t)).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		MethodNotAllowedError(http.MethodGet, "ledger is read-only").Write(w)
		return
	}
	if err := s.ledger.Delete(r.Context(), sanitizeInput(r.PathValue("id"))); err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// fail writes the error response for err, logging server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponseFor(err)
	if resp.statusCode >= http.StatusInternalServerError {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Request failed",
			log.NewFields().WithError(err).WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).ToSlice()...)
	}
	resp.Write(w)
}
