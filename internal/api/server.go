package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	apimw "github.com/storepos/internal/api/middleware"
	"github.com/storepos/internal/licensing"
)

// Reconciler requests a licence reconcile. Implementations may run it
// inline or hand it to the job queue.
type Reconciler interface {
	RequestReconcile(ctx context.Context) error
}

// InlineReconciler reconciles within the request.
type InlineReconciler struct {
	Service *licensing.Service
}

func (r InlineReconciler) RequestReconcile(ctx context.Context) error {
	_, err := r.Service.Reconcile(ctx)
	return err
}

// Server represents the API server
type Server struct {
	echo       *echo.Echo
	port       int
	license    *licensing.Service
	reconciler Reconciler
	limiter    *rate.Limiter
}

type ServerOption func(*Server)

// WithReconciler replaces the inline reconciler.
func WithReconciler(r Reconciler) ServerOption {
	return func(s *Server) { s.reconciler = r }
}

// WithActivationRate limits activation attempts per minute.
func WithActivationRate(perMinute int) ServerOption {
	return func(s *Server) { s.limiter = apimw.NewActivationLimiter(perMinute) }
}

// NewServer creates a new API server
func NewServer(port int, svc *licensing.Service, opts ...ServerOption) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:       e,
		port:       port,
		license:    svc,
		reconciler: InlineReconciler{Service: svc},
		limiter:    apimw.NewActivationLimiter(10),
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	s.attachLicenseRoutes(v1)
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("license service listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down license service")
	return s.echo.Shutdown(shutdownCtx)
}
