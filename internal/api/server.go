// Package api serves the archive over HTTP: a JSON API under /api and
// server-rendered pages for the feed, user profiles and the leaderboard.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wesm/chatarchive/internal/config"
	"github.com/wesm/chatarchive/internal/query"
	"github.com/wesm/chatarchive/internal/store"
)

// StatsSource provides corpus statistics for /api/stats.
type StatsSource interface {
	GetStats() (*store.Stats, error)
}

// Server represents the HTTP server.
type Server struct {
	cfg         *config.Config
	engine      query.Engine
	stats       StatsSource
	logger      *slog.Logger
	router      chi.Router
	server      *http.Server
	rateLimiter *RateLimiter
	metrics     *metrics
	pages       *pages
}

// NewServer creates a new server. engine and stats may be nil, in which case
// the endpoints that need them answer 503.
func NewServer(cfg *config.Config, engine query.Engine, stats StatsSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		engine: engine,
		stats:  stats,
		logger: logger,
		pages:  mustLoadPages(),
	}
	if cfg.Server.MetricsEnabled {
		s.metrics = newMetrics()
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	if s.metrics != nil {
		r.Use(s.metrics.middleware)
	}

	// CORS is disabled when no origins are configured.
	r.Use(CORSMiddleware(CORSConfig{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         86400,
	}))

	rps, burst := s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	s.rateLimiter = NewRateLimiter(rps, burst)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.rateLimiter))

		r.Route("/api", func(r chi.Router) {
			r.Get("/messages", s.handleSearch)
			r.Get("/users/{email}", s.handleUserStats)
			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/tags", s.handleTags)
			r.Get("/stats", s.handleStats)
		})

		r.Get("/", s.handleFeedPage)
		r.Get("/user/{email}", s.handleUserPage)
		r.Get("/leaderboard", s.handleLeaderboardPage)
	})

	return r
}

// Addr returns the listen address derived from config.
func (s *Server) Addr() string {
	bindAddr := s.cfg.Server.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	return net.JoinHostPort(bindAddr, strconv.Itoa(s.cfg.Server.APIPort))
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// loggerMiddleware logs HTTP requests.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// handleHealth returns a simple health check response. It never touches
// the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
