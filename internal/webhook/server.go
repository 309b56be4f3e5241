package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"musicpipe/internal/middleware"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// RateLimit allows Permits requests per Window across all callers
type RateLimit struct {
	Permits int
	Window  time.Duration
}

// Deps are the collaborators of the webhook endpoints
type Deps struct {
	Updater  SessionUpdater
	Lookup   PhraseLookup
	Notifier Notifier
}

// Server serves the webhook endpoints
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewRouter builds the webhook routes. Only the session update endpoint is
// rate limited.
func NewRouter(logger *zap.Logger, deps Deps, limit RateLimit) http.Handler {
	router := http.NewServeMux()

	limited := middleware.RateLimit(middleware.NewLimiter(limit.Permits, limit.Window), logger)

	router.Handle(
		"POST /yandex/sessionUpdate",
		limited(SessionUpdateHandler(logger, deps.Updater, deps.Lookup, deps.Notifier)),
	)
	router.HandleFunc("GET /healthz", HealthHandler())

	return middleware.Logging(logger)(router)
}

// NewServer creates a server listening on addr
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		logger: logger,
	}
}

// Run serves until ctx ends, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Webhook server started", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
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
	s.logger.Info("Webhook server stopped")
	return nil
}
