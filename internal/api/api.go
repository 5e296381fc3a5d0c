// Package api exposes the HTTP surface of the bot: the Evolution webhook,
// health and status probes, the admin metrics endpoint, and the websocket
// web-chat bridge.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iae-bsb/iae-bot/internal/flow"
	"github.com/iae-bsb/iae-bot/internal/metrics"
	"github.com/iae-bsb/iae-bot/internal/models"
	"github.com/iae-bsb/iae-bot/internal/session"
	"github.com/iae-bsb/iae-bot/internal/sponsor"
	"github.com/iae-bsb/iae-bot/internal/store"
)

// EventHandler consumes one inbound conversation event. Satisfied by
// *flow.Engine.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.Event)
}

// Deps carries the server's collaborators.
type Deps struct {
	Handler  EventHandler
	Sessions session.Store
	Sponsors *sponsor.Directory
	Metrics  *metrics.Sink
	// Store, when set, contributes durable aggregates to /admin/metrics.
	Store store.Store
	// EngineForSender builds a flow engine bound to a custom sender; the
	// websocket bridge uses it to route replies back over the socket.
	EngineForSender func(flow.Sender) (*flow.Engine, error)
	// PublicDir, when set, is served at the root path.
	PublicDir string
	// Probes run live connectivity checks for /tech/test, keyed by target
	// name.
	Probes map[string]func(ctx context.Context) error
	Logger *slog.Logger
}

// Server is the HTTP front of the bot.
type Server struct {
	deps      Deps
	logger    *slog.Logger
	router    chi.Router
	startedAt time.Time
	httpSrv   *http.Server
}

// NewServer wires the route table.
func NewServer(deps Deps) (*Server, error) {
	if deps.Handler == nil {
		return nil, fmt.Errorf("api: event handler is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, logger: logger, startedAt: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", s.webhookHandler)
	r.Get("/health", s.healthHandler)
	r.Get("/tech/status", s.techStatusHandler)
	r.Get("/tech/test", s.techTestHandler)
	r.Get("/admin/metrics", s.adminMetricsHandler)
	r.Get("/admin/sponsors", s.listSponsorsHandler)
	r.Post("/admin/sponsors", s.upsertSponsorHandler)
	r.Delete("/admin/sponsors/{placeID}", s.removeSponsorHandler)
	r.Get("/ws", s.wsHandler)

	if deps.PublicDir != "" {
		if _, err := os.Stat(deps.PublicDir); err == nil {
			r.Handle("/*", http.FileServer(http.Dir(deps.PublicDir)))
		} else {
			logger.Warn("Public dir not found, skipping static routes", "dir", deps.PublicDir)
		}
	}

	s.router = r
	return s, nil
}

// Router returns the handler for mounting or testing.
func (s *Server) Router() http.Handler { return s.router }

// Start begins serving on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server listening", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
