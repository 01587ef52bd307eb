// Package api provides the HTTP surface of DoughPilot.
//
// The API is the daemon's user interface: it loads recipes from Google
// Sheets into the saved-recipe library and drives the active cooking
// session through its state machine. All responses use the standard JSON
// envelope from the models package.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/doughlab/DoughPilot/internal/session"
	"github.com/doughlab/DoughPilot/internal/sheets"
	"github.com/doughlab/DoughPilot/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// shutdownTimeout bounds graceful shutdown on SIGTERM.
const shutdownTimeout = 10 * time.Second

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

// Server hosts the DoughPilot HTTP API.
type Server struct {
	st      store.Store
	manager *session.Manager
	loader  *sheets.Loader
	addr    string
	now     func() time.Time
	httpSrv *http.Server
}

// NewServer creates an API server over the given store, session manager and
// recipe loader.
func NewServer(st store.Store, manager *session.Manager, loader *sheets.Loader, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		st:      st,
		manager: manager,
		loader:  loader,
		addr:    cfg.Addr,
		now:     time.Now,
	}
}

// routes builds the API handler tree.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/recipes/load", s.loadRecipesHandler)
	mux.HandleFunc("/recipes", s.recipesHandler)
	mux.HandleFunc("/recipes/", s.recipeByIDHandler)
	mux.HandleFunc("/session", s.sessionHandler)
	mux.HandleFunc("/session/start", s.startSessionHandler)
	mux.HandleFunc("/session/advance", s.advanceHandler)
	mux.HandleFunc("/session/start-early", s.startEarlyHandler)
	mux.HandleFunc("/session/back", s.goBackHandler)
	mux.HandleFunc("/session/finish", s.finishHandler)
	mux.HandleFunc("/session/cancel", s.cancelHandler)
	mux.HandleFunc("/session/snooze", s.snoozeHandler)
	mux.HandleFunc("/session/pending-step", s.pendingStepHandler)
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	return nil
}

// healthHandler provides a health check endpoint for monitoring.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}

	// The store is the one dependency the daemon cannot limp along without.
	if _, err := s.st.GetSession(); err != nil {
		slog.Warn("Health check: store unavailable", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to read session store"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}
