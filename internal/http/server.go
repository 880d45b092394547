// Package http serves the dashboard views and ledger writes as a JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"saldi/internal/dashboard"
	"saldi/internal/log"
	"saldi/internal/services"
)

// Deps are the collaborators of a Server. Ledger may be nil, in which case
// the write routes answer 405.
type Deps struct {
	Dashboard *dashboard.Service
	Ledger    *services.LedgerService
	Ready     func(ctx context.Context) error
	Location  *time.Location
	Now       func() time.Time

	// WriteLimit is the number of writes per minute allowed per client IP.
	WriteLimit int
	Logger     *log.Logger
}

// Server is the HTTP front of the dashboard.
type Server struct {
	*http.Server

	dash   *dashboard.Service
	ledger *services.LedgerService
	ready  func(ctx context.Context) error
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger

	rateLimiter  *rateLimiter
	security     securityMetrics
	started      time.Time
	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Ready == nil {
		deps.Ready = func(context.Context) error { return nil }
	}

	s := &Server{
		dash:        deps.Dashboard,
		ledger:      deps.Ledger,
		ready:       deps.Ready,
		loc:         deps.Location,
		now:         deps.Now,
		logger:      deps.Logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(deps.WriteLimit, deps.Now),
		started:     deps.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/conti", s.handleConti)
	mux.HandleFunc("GET /api/libri", s.handleLibri)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/multi", s.handleMultiHistory)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	s.Server = &http.Server{
		Addr:              addr,
		Handler:           log.Middleware(deps.Logger)(log.AccessLog(s.withSecurity(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// withSecurity sets security headers, rate limits writes and flags
// suspicious requests.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)

		if detectSuspiciousRequest(r, &s.security) {
			logger.WarnContext(r.Context(), "Suspicious request",
				log.NewFields().
					WithClientIP(clientIP).
					WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).ToSlice()...)
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-store")
		}

		if isWrite(r.Method) && !s.rateLimiter.allow(clientIP, &s.security) {
			logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.NewFields().WithClientIP(clientIP).ToSlice()...)
			TooManyRequestsError(int(rateWindow.Seconds())).Write(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isWrite(method string) bool {
	return method == http.MethodPost || method == http.MethodDelete
}

// Shutdown gracefully shuts down the server and the rate limiter sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) clock() time.Time {
	return s.now().In(s.loc)
}
