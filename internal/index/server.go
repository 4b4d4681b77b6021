package index

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/SpatiumPortae/peershare/internal/semver"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a Store over HTTP.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	store      Store
	logger     *zap.Logger
	version    semver.Version
}

// ServerOption configures a Server.
type ServerOption func(s *Server)

func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer constructs a Server for the store and sets up the routes.
func NewServer(port int, store Store, version semver.Version, opts ...ServerOption) *Server {
	router := mux.NewRouter().UseEncodedPath()
	s := &Server{
		router:  router,
		store:   store,
		logger:  zap.NewNop(),
		version: version,
	}
	for _, opt := range opts {
		opt(s)
	}
	stdLogger, _ := zap.NewStdLogAt(s.logger, zap.ErrorLevel)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Handler:      router,
		ErrorLog:     stdLogger,
	}
	s.routes()
	return s
}

// Handler returns the routed handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the index until the context is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("binding index server: %w", err)
	}
	return s.serve(ctx, ln)
}

// serve is a helper providing graceful shutdown of the server.
func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errC := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
		close(errC)
	}()

	s.logger.
		With(zap.String("version", s.version.String())).
		With(zap.String("address", ln.Addr().String())).
		Info("serving index server")

	select {
	case err := <-errC:
		return fmt.Errorf("serving index server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("index server is shutting down")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("shutting down index server: %w", err)
	}
	s.logger.Info("index server shutdown successfully")
	return nil
}
