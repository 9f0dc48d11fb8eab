package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/middleware/ratelimit"
	"billtrack/internal/middleware/security"
	"billtrack/internal/middleware/trace"
	"billtrack/internal/services"
)

// HeaderPrincipal names the header the upstream auth proxy sets.
const HeaderPrincipal = "X-User-ID"

type principalKey struct{}

// Deps are the services behind the API.
type Deps struct {
	Sessions   *services.Sessions
	Dashboards *services.DashboardService
	Reports    *services.ReportService

	Location  *time.Location
	WeekStart time.Weekday
	Now       func() time.Time
}

type Options struct {
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	deps    Deps
	opts    Options
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Component: log.ComponentHTTP})
	}

	// A replacement store restarts its version, so cached dashboards of an
	// ended session must not outlive it.
	deps.Sessions.OnEnd(deps.Dashboards.Forget)

	proxies := security.NewProxies()
	s := &Server{
		deps:    deps,
		opts:    opts,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(proxies.ClientIP, opts.Logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.authenticated(s.withTimeout(h)))
	}
	api("GET /api/summary", s.handleSummary)
	api("GET /api/transactions", s.handleTransactions)
	api("PUT /api/transactions/{id}/due", s.handleUpdateDue)
	api("POST /api/refresh", s.handleRefresh)
	api("GET /api/report", s.handleReport)
	api("DELETE /api/session", s.handleEndSession)

	limited := s.limiter.Middleware(func(r *http.Request) string {
		if p := principalHeader(r); p != "" {
			return "user:" + p
		}
		return "ip:" + proxies.ClientIP(r)
	}, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldComponent, log.ComponentRateLimit,
			log.FieldPath, r.URL.Path)
		writeJSON(r.Context(), w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(limited(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func principalHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderPrincipal))
}

func principalFrom(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(string)
	return p
}

// authenticated rejects requests without a principal and stores it in the
// request context.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := principalHeader(r)
		if err := core.ValidatePrincipal(principal); err != nil {
			writeError(w, r, "", err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		logger := log.FromContext(ctx).With(log.FieldPrincipal, principal)
		next.ServeHTTP(w, r.WithContext(log.NewContext(ctx, logger)))
	})
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
