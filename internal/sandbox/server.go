// Package sandbox serves a small healthcare REST API backed by generated
// data. The API suites run against it when no real target is configured.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hcqa/hcqa/internal/platform/analytics"
	"github.com/hcqa/hcqa/internal/platform/db"
	"github.com/hcqa/hcqa/internal/platform/middleware"
	"github.com/hcqa/hcqa/internal/platform/security"
	"github.com/hcqa/hcqa/internal/testdata"
)

const (
	DefaultSeedPatients = 25
	DefaultBodyLimit    = "1M"
	DefaultTimeout      = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Config configures the sandbox server. Zero values fall back to defaults.
type Config struct {
	Username  string
	Password  string
	JWTSecret string

	// SeedPatients is the number of generated patients, DefaultSeedPatients
	// when zero and none when negative.
	SeedPatients int
	Seed         uint64

	RateLimit middleware.RateLimitConfig
	// OmitHeaders drops security headers from every response.
	OmitHeaders []string
	BodyLimit   string
	Timeout     time.Duration

	// DB, when set, persists audit entries to audit_trail under DBAlias and
	// serves GET /health/db.
	DB      *db.Manager
	DBAlias string

	Logger zerolog.Logger
	Now    func() time.Time
}

// Server is the sandbox healthcare API.
type Server struct {
	echo   *echo.Echo
	store  *Store
	helper *security.Helper
	cfg    Config
	hash   string
	usage  *analytics.UsageTracker
}

// New builds a server with its routes and seeded store.
func New(cfg Config) (*Server, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("sandbox: username and password are required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("sandbox: JWT secret is required")
	}
	if cfg.SeedPatients == 0 {
		cfg.SeedPatients = DefaultSeedPatients
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit = middleware.DefaultRateLimitConfig()
	}

	helper, err := security.New(security.Options{Logger: cfg.Logger, Now: cfg.Now})
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}
	hash, err := helper.HashPassword(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("sandbox: hash password: %w", err)
	}

	store := NewStore()
	if cfg.SeedPatients > 0 {
		f := testdata.NewFactory(testdata.FactoryOptions{Seed: cfg.Seed, Now: cfg.Now})
		if err := store.Seed(f, cfg.SeedPatients); err != nil {
			return nil, fmt.Errorf("sandbox: seed: %w", err)
		}
	}

	s := &Server{store: store, helper: helper, cfg: cfg, hash: hash, usage: analytics.NewUsageTracker()}
	s.echo = s.routes()
	return s, nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	var recorder middleware.AuditRecorder
	if s.cfg.DB != nil {
		recorder = DBAuditRecorder(s.cfg.DB, s.cfg.DBAlias)
	}

	e.Use(middleware.Recovery(s.cfg.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.cfg.Logger))
	e.Use(analytics.Middleware(s.usage))
	e.Use(middleware.SecurityHeaders(s.cfg.OmitHeaders...))
	e.Use(middleware.BodyLimit(s.cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(s.cfg.Timeout))
	e.Use(middleware.BearerAuth(middleware.AuthConfig{
		Verify: func(token string) (map[string]any, error) {
			return s.helper.VerifyToken(token, s.cfg.JWTSecret)
		},
		Public: []string{"/health", "/health/db", "/auth/login"},
	}))
	e.Use(middleware.RateLimit(s.cfg.RateLimit))
	e.Use(middleware.Audit(s.cfg.Logger, recorder))

	e.GET("/health", s.health)
	if s.cfg.DB != nil {
		e.GET("/health/db", db.HealthHandler(s.cfg.DB, s.cfg.DBAlias))
	}
	e.POST("/auth/login", s.login)

	api := e.Group("/api/v1")
	api.GET("/patients", s.listPatients)
	api.POST("/patients", s.createPatient)
	api.GET("/patients/:id", s.getPatient)
	api.DELETE("/patients/:id", s.deletePatient)
	api.GET("/appointments", s.listAppointments)
	api.POST("/appointments", s.createAppointment)

	e.GET("/fhir/Patient", s.searchFHIRPatients)
	e.GET("/fhir/Patient/:id", s.fhirPatient)

	e.GET("/stats", analytics.OverviewHandler(s.usage))
	return e
}

// Handler exposes the router, for httptest servers.
func (s *Server) Handler() http.Handler { return s.echo }

// Usage exposes the request counters served on GET /stats.
func (s *Server) Usage() *analytics.UsageTracker { return s.usage }

// Store exposes the backing store.
func (s *Server) Store() *Store { return s.store }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sandbox: listen %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info().Str("addr", ln.Addr().String()).Msg("sandbox API listening")
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sandbox: shutdown: %w", err)
	}
	s.cfg.Logger.Info().Msg("sandbox API stopped")
	return nil
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}
