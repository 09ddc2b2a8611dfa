// Package api exposes the campus copilot over HTTP.
//
// Endpoints:
//
//	POST   /api/v1/chat                              → one chat turn
//	POST   /api/v1/moderate                           → standalone moderation check
//	GET    /api/v1/conversations/{session_id}         → summary
//	GET    /api/v1/conversations/{session_id}/history → turns
//	DELETE /api/v1/conversations/{session_id}         → deactivate (?hard=true deletes)
//	GET    /health                                    → liveness probe
//	GET    /ready                                     → readiness probe (DB ping)
//
// Everything under /api/ requires the pre-shared bearer token; the
// probes do not.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexora/campus-copilot/internal/conversation"
	"github.com/nexora/campus-copilot/internal/log"
	"github.com/nexora/campus-copilot/internal/moderation"
	"github.com/nexora/campus-copilot/internal/service"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "0.0.0.0:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because a chat turn can run several
	// model and tool round-trips.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the copilot's HTTP server.
type Server struct {
	mux    *http.ServeMux
	apiKey string
	logger log.Logger

	health        *HealthHandler
	chat          *ChatHandler
	moderate      *ModerationHandler
	conversations *ConversationHandler
}

// NewServer creates a server with all routes registered. apiKey is the
// pre-shared bearer token; empty disables authentication (development
// only, and loudly logged).
func NewServer(copilot *service.Copilot, store *conversation.Store, gate *moderation.Gate, pool *pgxpool.Pool, apiKey string, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:           mux,
		apiKey:        apiKey,
		logger:        logger,
		health:        NewHealthHandler(pool, logger),
		chat:          NewChatHandler(copilot, logger),
		moderate:      NewModerationHandler(gate, logger),
		conversations: NewConversationHandler(store, logger),
	}

	if apiKey == "" {
		logger.Warn("API key is empty, authentication is disabled")
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.moderate.RegisterRoutes(mux)
	s.conversations.RegisterRoutes(mux)

	return s
}

// Handler returns the handler with the middleware chain applied.
// Order: recovery → logging → auth → routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		authMiddleware(s.apiKey),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
