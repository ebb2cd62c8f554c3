package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zero-day-ai/graphsync/internal/checkpoint"
	"github.com/zero-day-ai/graphsync/internal/docmanager"
	"github.com/zero-day-ai/graphsync/internal/observability"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// DocumentReader is the read side of a DocManager.
type DocumentReader interface {
	Search(ctx context.Context, start, end int64) ([]docmanager.RootRecord, error)
	GetLastDoc(ctx context.Context) (*docmanager.RootRecord, error)
	Get(ctx context.Context, id any, namespace string) (*docmanager.RootRecord, error)
}

// HealthFunc reports the health of one dependency.
type HealthFunc func(ctx context.Context) types.HealthStatus

// Server is the admin HTTP API.
type Server struct {
	engine      *gin.Engine
	reader      DocumentReader
	checkpoints checkpoint.Store
	health      map[string]HealthFunc
	metrics     http.Handler
	logger      *observability.TracedLogger
	version     string
}

// Option configures a Server.
type Option func(*Server)

// WithHealthCheck registers a dependency reported by /health.
func WithHealthCheck(name string, fn HealthFunc) Option {
	return func(s *Server) {
		s.health[name] = fn
	}
}

// WithCheckpoints exposes the checkpoint store on /api/v1/checkpoints.
func WithCheckpoints(store checkpoint.Store) Option {
	return func(s *Server) {
		s.checkpoints = store
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *observability.TracedLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer builds the router over reader.
func NewServer(reader DocumentReader, opts ...Option) *Server {
	s := &Server{
		reader: reader,
		health: make(map[string]HealthFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewTracedLogger(slog.Default().Handler(), "api")
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery(), s.logRequests())
	s.engine = engine
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/api/v1")
	v1.GET("/documents", s.handleSearch)
	v1.GET("/documents/last", s.handleLastDoc)
	v1.GET("/documents/:namespace/:id", s.handleGet)
	if s.checkpoints != nil {
		v1.GET("/checkpoints", s.handleCheckpoints)
	}

	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics))
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "admin api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
