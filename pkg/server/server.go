package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP front of the gateway: the websocket upgrade endpoint
// plus health and metrics.
type Server struct {
	cfg         *Config
	logger      *slog.Logger
	manager     *Manager
	broadcaster *Broadcaster
	registry    *prometheus.Registry
	upgrader    websocket.Upgrader
	handler     http.Handler
	httpSrv     *http.Server
}

// New wires a Server from its parts. dispatcher routes inbound frames;
// reaper (may be nil) is invoked on every broadcast tick.
func New(cfg *Config, dispatcher Dispatcher, reaper Reaper, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	// Each Server carries its own registry so /metrics serves exactly its
	// own instruments.
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	manager := NewManager(cfg, dispatcher, logger, metrics)

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		manager:     manager,
		broadcaster: NewBroadcaster(manager, reaper, cfg.TimestampInterval, logger),
		registry:    registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
		},
	}
	if !cfg.CheckOrigin {
		s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	s.handler = s.routes()
	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.handler,
	}
	return s
}

// Manager exposes the connection manager, mainly for the broadcaster and
// tests.
func (s *Server) Manager() *Manager { return s.manager }

// Handler returns the HTTP handler, for mounting in tests.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(s.cfg.WebSocketPath, s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	// Accept blocks for the lifetime of the connection.
	if err := s.manager.Accept(ws); err != nil {
		s.logger.Debug("accept rejected", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Run serves until the context is cancelled, then drains connections and
// stops the HTTP listener. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	bctx, cancelBroadcast := context.WithCancel(ctx)
	defer cancelBroadcast()
	go s.broadcaster.Run(bctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "tls", s.cfg.TLSCertFile != "")
		var err error
		if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
			err = s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	cancelBroadcast()
	if err := s.manager.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("connection drain incomplete", "error", err)
	}
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
