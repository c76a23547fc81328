package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"profitloss/internal/log"
	"profitloss/internal/middleware/ratelimit"
	"profitloss/internal/middleware/security"
	"profitloss/internal/middleware/trace"
	"profitloss/internal/storage"
)

// SyncPublisher enqueues a transaction for mirroring to the ledger sheet.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id, version int64) error
}

type Server struct {
	http.Server
	store        *storage.SQLiteRepository
	publisher    SyncPublisher
	logger       *log.Logger
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// Options configures the HTTP server.
type Options struct {
	Addr               string
	RateLimitPerMinute int
}

// NewServer wires middleware and routes, returning a ready-to-run server.
// publisher may be nil, in which case writes are not mirrored anywhere.
func NewServer(opts Options, store *storage.SQLiteRepository, publisher SyncPublisher, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		Server: http.Server{
			Addr:         opts.Addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		tracer: trace.NewMiddleware(clientIP),
	}

	s.Server.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(clientIP, s.onRateLimited))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})

		r.Route("/coa", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Put("/{id}", s.handleUpdateAccount)
			r.Delete("/{id}", s.handleDeleteAccount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/profitloss", s.handleProfitLossReport)
			r.Get("/profitloss/export", s.handleProfitLossExport)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, clientIP(r),
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	respondError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		metrics := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "Server shutting down",
			"total_requests", metrics.TotalRequests,
			"last_response_us", metrics.LastResponseTime)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
