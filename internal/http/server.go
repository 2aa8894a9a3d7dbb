// Package http exposes the bookkeeping services as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"boekhouding/internal/cache"
	applog "boekhouding/internal/log"
	"boekhouding/internal/middleware/ratelimit"
	"boekhouding/internal/middleware/security"
	"boekhouding/internal/middleware/trace"
	"boekhouding/internal/services"
	"boekhouding/internal/storage"
)

// Config holds the server settings taken from the environment.
type Config struct {
	Addr               string
	RequestTimeout     time.Duration
	RateLimitPerMinute int
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Store        storage.Store
	Transactions *services.TransactionService
	Relations    *services.RelationService
	Settings     *services.SettingsService
	Reports      *services.ReportService
	// Caches are only read for /metrics; either may be nil.
	Caches services.ReportCaches
}

type Server struct {
	http.Server

	deps           Deps
	logger         *applog.Logger
	requestTimeout time.Duration
	started        time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Shutdown stops the background goroutines it starts.
func NewServer(cfg Config, deps Deps, logger *applog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		deps:             deps,
		logger:           logger,
		requestTimeout:   cfg.RequestTimeout,
		started:          time.Now(),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		}),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.ComponentMiddleware(applog.ComponentHTTP)(handler)
	handler = detector.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("GET /api/transactions", s.api(s.handleListTransactions))
	mux.Handle("POST /api/transactions", s.mutation(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions/{id}", s.api(s.handleGetTransaction))
	mux.Handle("PUT /api/transactions/{id}", s.mutation(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", s.mutation(s.handleDeleteTransaction))

	mux.Handle("GET /api/relations", s.api(s.handleListRelations))
	mux.Handle("POST /api/relations", s.mutation(s.handleCreateRelation))
	mux.Handle("GET /api/relations/{id}", s.api(s.handleGetRelation))
	mux.Handle("PUT /api/relations/{id}", s.mutation(s.handleUpdateRelation))
	mux.Handle("DELETE /api/relations/{id}", s.mutation(s.handleDeleteRelation))

	mux.Handle("GET /api/settings", s.api(s.handleGetSettings))
	mux.Handle("PUT /api/settings", s.mutation(s.handleUpdateSettings))

	mux.Handle("GET /api/dashboard", s.api(s.handleDashboard))
	mux.Handle("GET /api/reports/vat", s.api(s.handleVatReport))
	mux.Handle("GET /api/reports/profit-loss", s.api(s.handleProfitAndLoss))
}

// api bounds the handler by the request timeout.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		h(w, r.WithContext(ctx))
	})
}

// mutation is api plus per-client rate limiting.
func (s *Server) mutation(h http.HandlerFunc) http.Handler {
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, please try again later"})
	})
	return limit(s.api(h))
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// cacheSize reports the entry count of c, or 0 when caching is off.
func cacheSize[T any](c cache.Cache[T]) int {
	if c == nil {
		return 0
	}
	return c.Size()
}
