package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"pinengine/internal/infra/config"
	"pinengine/internal/infra/middleware"
)

// Server owns the HTTP listener for the command surface.
type Server struct {
	cfg         config.HTTPConfig
	gatewayPath string
	deps        Deps
	logger      *slog.Logger

	mu        sync.Mutex
	server    *http.Server
	boundAddr string

	// Lifecycle of the rate limiter cleanup goroutine.
	cancel context.CancelFunc
}

// NewServer creates the command surface. gatewayPath is where deps.Gateway
// is mounted when it is set.
func NewServer(cfg config.HTTPConfig, gatewayPath string, deps Deps) *Server {
	if deps.StartTime.IsZero() {
		deps.StartTime = time.Now()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if gatewayPath == "" {
		gatewayPath = "/ws"
	}
	return &Server{cfg: cfg, gatewayPath: gatewayPath, deps: deps, logger: deps.Logger}
}

// Handler builds the routed handler without middleware.
func (s *Server) Handler() http.Handler {
	h := &handlers{deps: &s.deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /setgpio", h.setGPIO)
	mux.HandleFunc("GET /batch", h.batch)
	mux.HandleFunc("GET /readgpio", h.readGPIO)
	mux.HandleFunc("GET /schedule", h.schedule)
	mux.HandleFunc("GET /blink", h.blink)
	mux.HandleFunc("GET /readadc", h.readADC)
	mux.HandleFunc("GET /status", h.status)
	mux.HandleFunc("GET /pins", h.pins)
	mux.HandleFunc("GET /routines", h.routines)
	mux.HandleFunc("DELETE /routines/{name}", h.removeRoutine)
	mux.HandleFunc("GET /journal", h.journal)
	mux.HandleFunc("GET /metrics", h.metrics)
	mux.HandleFunc("GET /healthz", h.healthz)
	if s.cfg.Dashboard {
		mux.HandleFunc("GET /{$}", h.dashboard)
	}
	if s.deps.Gateway != nil {
		mux.Handle("GET "+s.gatewayPath, s.deps.Gateway)
	}
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mwCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	mws := []func(http.Handler) http.Handler{
		middleware.Recover(s.logger),
		middleware.RequestLog(s.logger),
		middleware.SecurityHeaders,
	}
	if rl := s.cfg.RateLimit; rl.Enabled {
		mws = append(mws, middleware.RateLimit(mwCtx, middleware.RateLimitConfig{
			RequestsPerMin: rl.PerMinute,
			BurstSize:      rl.Burst,
			TrustedProxies: s.cfg.TrustedProxies,
		}))
	}

	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           middleware.Chain(s.Handler(), mws...),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		cancel()
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.boundAddr = ln.Addr().String()

	srv := s.server
	go func() {
		s.logger.Info("http api started", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has returned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
