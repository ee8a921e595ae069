// Package server assembles the kinstory HTTP server and manages its lifecycle.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scrypster/kinstory/internal/config"
	"github.com/scrypster/kinstory/internal/engine"
	"github.com/scrypster/kinstory/web/handlers"
)

const shutdownTimeout = 5 * time.Second

// Server serves the REST API, the change feed and metrics.
type Server struct {
	cfg *config.Config
	hub *handlers.EventHub
	srv *http.Server
	log *zap.Logger
}

// New builds the server. hub must be the publisher the engine was created
// with so mutations reach WebSocket clients.
func New(cfg *config.Config, eng *engine.Engine, hub *handlers.EventHub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, hub: hub, log: log}
	s.srv = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.routes(eng),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) routes(eng *engine.Engine) http.Handler {
	api := handlers.NewAPIHandlers(eng, s.log)

	apiMux := http.NewServeMux()
	api.Register(apiMux)

	mux := http.NewServeMux()
	// Health is open so load balancers can probe it.
	mux.HandleFunc("GET /api/health", api.Health)
	mux.Handle("/api/", handlers.RequireAuth(apiMux, s.cfg))
	mux.Handle("GET /ws", handlers.RequireAuth(s.hub, s.cfg))
	if s.cfg.Server.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	rl := handlers.NewRateLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateBurst)
	var h http.Handler = handlers.RateLimitMiddleware(mux, rl)
	h = handlers.RequestLogger(h, s.log)
	return handlers.SecurityHeaders(h)
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.hub.Run()
	defer s.hub.Stop()

	s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}
