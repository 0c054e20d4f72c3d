package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/flow"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/store"
)

const (
	defaultAddr     = ":8000"
	shutdownTimeout = 10 * time.Second
)

// Server holds the HTTP API dependencies.
type Server struct {
	st     store.Store
	engine *flow.Engine
	addr   string
}

// Opts holds server configuration.
type Opts struct {
	Addr string
}

// Option configures Opts.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// NewServer creates the API server.
func NewServer(st store.Store, engine *flow.Engine, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	return &Server{st: st, engine: engine, addr: cfg.Addr}
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.rootHandler)
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/reset/", s.resetHandler)
	mux.HandleFunc("/conversations", s.conversationsHandler)
	mux.HandleFunc("/leads", s.leadsHandler)
	mux.HandleFunc("/conversation/", s.conversationHandler)
	mux.HandleFunc("/export/", s.exportHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run serves the API until the context is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	return nil
}
