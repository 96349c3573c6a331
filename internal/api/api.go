// Package api provides the operational HTTP surface for registrobot.
//
// It exposes a health endpoint, the on-demand summary aggregates, and the
// current stock, and mounts the inbound webhook when the SMS transport is
// active.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/vmoreyra/registrobot/internal/flow"
	"github.com/vmoreyra/registrobot/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// healthStatus is the health endpoint payload.
type healthStatus struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	Status     string `json:"status"`
}

// Server serves the operational endpoints.
type Server struct {
	store     store.Store
	webhook   http.HandlerFunc
	startedAt time.Time
	httpSrv   *http.Server
}

// NewServer creates an API server over the given store. webhook may be nil
// when the active transport has no inbound HTTP leg.
func NewServer(st store.Store, webhook http.HandlerFunc, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{
		store:     st,
		webhook:   webhook,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/summary", s.summaryHandler)
	mux.HandleFunc("/stock", s.stockHandler)
	if webhook != nil {
		mux.HandleFunc("/webhook/sms", webhook)
		slog.Debug("API mounted SMS webhook", "path", "/webhook/sms")
	}

	s.httpSrv = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("API server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, healthStatus{
		Uptime:     time.Since(s.startedAt).String(),
		Goroutines: runtime.NumGoroutine(),
		Status:     "ok",
	})
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summary, err := flow.Summarize(r.Context(), s.store)
	if err != nil {
		slog.Error("API summary failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary)
}

func (s *Server) stockHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entries, err := s.store.ListStock()
	if err != nil {
		slog.Error("API stock listing failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("API response encoding failed", "error", err)
	}
}
