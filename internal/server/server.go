// ABOUTME: Server wires the user, note and session services behind the auth pipeline
// ABOUTME: Owns the HTTP server lifecycle on a TCP or tailnet listener

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/coven-notes/internal/auth"
	"github.com/2389/coven-notes/internal/config"
	"github.com/2389/coven-notes/internal/notes"
	"github.com/2389/coven-notes/internal/respond"
	"github.com/2389/coven-notes/internal/sessions"
	"github.com/2389/coven-notes/internal/users"
)

// Server is the coven-notes HTTP service.
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	now      func() time.Time
	users    *users.Service
	notes    *notes.Service
	sessions *sessions.Service
	pipeline *auth.Pipeline
	mapper   *respond.Mapper

	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the wall clock used for session expiry and token checks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a Server from cfg. All state lives in memory.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		logger: logger.With("component", "server"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	codec, err := auth.NewJWTCodec([]byte(cfg.Auth.JWTSecret), s.now)
	if err != nil {
		return nil, fmt.Errorf("creating token codec: %w", err)
	}

	s.users = users.NewService(users.WithHashCost(cfg.Users.HashCost), users.WithLogger(logger))
	s.notes = notes.NewService(logger)
	s.sessions = sessions.NewService(sessions.WithClock(s.now), sessions.WithLogger(logger))
	s.pipeline = auth.NewPipeline(codec, s.sessions, auth.PipelineConfig{
		Validity: cfg.Auth.Validity(),
		Cookie:   auth.CookieOptions{Secure: cfg.Auth.CookieSecure},
		Now:      s.now,
		Logger:   logger,
	})
	s.mapper = respond.NewMapper(logger, Rules())

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = s.mapper.Wrap(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	s.logger.Info("starting server", "http_addr", s.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
// Returns nil on graceful shutdown, or the error that stopped the server.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// the parent context is already done, so shut down on a fresh one
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown stops the HTTP server and the tailnet node if one is running.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if s.tsnetServer != nil {
		if err := s.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	s.logger.Info("server stopped")
	return errors.Join(errs...)
}
