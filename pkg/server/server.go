// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pario-ai/bistro/pkg/auth"
	"github.com/pario-ai/bistro/pkg/chat"
	"github.com/pario-ai/bistro/pkg/config"
	"github.com/pario-ai/bistro/pkg/metrics"
	"github.com/pario-ai/bistro/pkg/models"
)

// UsageReporter is the read side of the usage ledger.
type UsageReporter interface {
	Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error)
	Daily(ctx context.Context, since time.Time) ([]models.DailyUsage, error)
}

// Deps are the collaborators of a Server. Chat is required.
type Deps struct {
	Chat     *chat.Service
	Usage    UsageReporter
	Issuer   *auth.Issuer
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server is the bistro HTTP API.
type Server struct {
	cfg     *config.Config
	chat    *chat.Service
	usage   UsageReporter
	issuer  *auth.Issuer
	logger  *zap.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a Server with all routes registered. ctx bounds the
// background cleanup of the rate limiter.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "server"))

	s := &Server{
		cfg:    cfg,
		chat:   deps.Chat,
		usage:  deps.Usage,
		issuer: deps.Issuer,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	limit := RateLimiter(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	admin := AdminAuth(deps.Issuer, logger)

	s.mux.Handle("POST /api/chatbot", limit(http.HandlerFunc(s.handleChat)))
	s.mux.HandleFunc("GET /api/chatbot/status", s.handleStatus)
	s.mux.Handle("GET /api/admin/chatbot/stats", admin(http.HandlerFunc(s.handleStats)))
	s.mux.Handle("POST /api/admin/chatbot/stats/reset", admin(http.HandlerFunc(s.handleResetStats)))
	s.mux.Handle("POST /api/admin/chatbot/cache/clear", admin(http.HandlerFunc(s.handleClearCache)))
	s.mux.Handle("GET /api/admin/usage", admin(http.HandlerFunc(s.handleUsage)))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if deps.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	middlewares := []Middleware{RequestID(), Recovery(logger), RequestLogger(logger)}
	if deps.Metrics != nil {
		middlewares = append(middlewares, Metrics(deps.Metrics))
	}
	s.handler = Chain(s.mux, middlewares...)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the server and shuts it down gracefully when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("bistro listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"bistro_error","code":%d}}`, message, code)
}
