// Package web serves the HTTP API: health, run statistics, address
// normalization, scope files and Prometheus metrics.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/m25mathews/rainger-poc/internal/config"
	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/metrics"
	"github.com/m25mathews/rainger-poc/internal/normalize"
	"github.com/m25mathews/rainger-poc/internal/postal"
	"github.com/m25mathews/rainger-poc/internal/web/handlers"
	"github.com/m25mathews/rainger-poc/internal/web/middleware"
)

const statsTimeout = 30 * time.Minute

// StatsRunner recomputes the run statistics.
type StatsRunner interface {
	Stats(ctx context.Context) (int64, error)
}

// Deps are the collaborators of the server. Nil Stats disables
// /api/stats; nil Runner disables the statistics schedule.
type Deps struct {
	Stats   handlers.StatsReader
	Runner  StatsRunner
	Parser  postal.Parser
	Tables  *normalize.Tables
	Metrics *metrics.Metrics
}

// Server represents the web server
type Server struct {
	config     config.HTTPConfig
	scopesDir  string
	deps       Deps
	httpServer *http.Server
	router     *mux.Router
	cron       *cron.Cron
	logger     *slog.Logger
}

// NewServer creates a new web server instance
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Parser == nil {
		deps.Parser = postal.Default()
	}
	if deps.Tables == nil {
		deps.Tables = normalize.DefaultTables()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}

	s := &Server{
		config:    cfg.HTTP,
		scopesDir: cfg.Scopes.Dir,
		deps:      deps,
		logger:    logging.WithComponent("web"),
	}
	if err := s.setupSchedule(); err != nil {
		return nil, err
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.HTTP.Host, fmt.Sprint(cfg.HTTP.Port)),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	apiHandler := &handlers.APIHandler{Stats: s.deps.Stats, Logger: s.logger}
	normalizeHandler := &handlers.NormalizeHandler{
		Parser:   s.deps.Parser,
		Tables:   s.deps.Tables,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Logger:   s.logger,
	}
	scopesHandler := &handlers.ScopesHandler{Dir: s.scopesDir, Logger: s.logger}

	s.router.HandleFunc("/health", apiHandler.Health).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", apiHandler.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/normalize", normalizeHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/normalize", normalizeHandler.Post).Methods(http.MethodPost)
	api.HandleFunc("/scopes", scopesHandler.List).Methods(http.MethodGet)

	s.router.Use(middleware.RequestLogging(s.logger, s.deps.Metrics))
	api.Use(middleware.Authentication(s.config.APIKey))
}

// setupSchedule registers the periodic statistics job.
func (s *Server) setupSchedule() error {
	if s.config.StatsSchedule == "" || s.deps.Runner == nil {
		return nil
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.config.StatsSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()
		n, err := s.deps.Runner.Stats(ctx)
		if err != nil {
			s.logger.Error("scheduled statistics failed", "error", err)
			return
		}
		s.logger.Info("scheduled statistics recorded", "metrics", n)
	})
	return errors.Wrapf(err, "invalid stats schedule %q", s.config.StatsSchedule)
}

// Handler is the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return middleware.CORS()(s.router)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.cron != nil {
		s.cron.Start()
		s.logger.Info("statistics schedule started", "schedule", s.config.StatsSchedule)
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		s.stopSchedule()
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", "error", err)
	}
	s.stopSchedule()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) stopSchedule() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
