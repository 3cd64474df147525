// Package stubbackend is a local stand-in for the job backend: it serves the
// auth, job-trigger and progress-stream endpoints bw talks to and simulates
// job progress. It is meant for development and tests.
package stubbackend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

const (
	defaultTokenTTL  = 24 * time.Hour
	defaultStepDelay = 2 * time.Second
	heartbeatEvery   = 15 * time.Second
	claimsKey        = "claims"
)

type Config struct {
	// Secret signs session tokens. Required.
	Secret     string
	TokenTTL   time.Duration
	StepDelay  time.Duration
	BcryptCost int
	// Users are registered at startup, username to password.
	Users  map[string]string
	Mirror Mirror
	Logger zerolog.Logger
	Now    func() time.Time
}

type Server struct {
	echo   *echo.Echo
	users  *userStore
	tokens tokenIssuer
	hub    *hub
	jobs   *jobRunner
	logger zerolog.Logger
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=4,max=256"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = defaultStepDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	h := newHub(0, cfg.Mirror, cfg.Logger)
	s := &Server{
		users:  newUserStore(cfg.BcryptCost),
		tokens: tokenIssuer{secret: []byte(cfg.Secret), ttl: cfg.TokenTTL, now: cfg.Now},
		hub:    h,
		jobs:   newJobRunner(h, cfg.StepDelay, cfg.Logger),
		logger: cfg.Logger,
	}

	for username, password := range cfg.Users {
		if err := s.users.Register(username, password); err != nil {
			return nil, fmt.Errorf("seed user %q: %w", username, err)
		}
	}

	s.echo = s.routes()
	return s, nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &echoValidator{v: validator.New()}
	e.HTTPErrorHandler = s.handleError

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			s.logger.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("client_session", c.Request().Header.Get("X-Client-Session")).
				Msg("request")
			return nil
		},
	}))

	e.POST("/auth/register", s.register)
	e.POST("/auth/login", s.login)

	authed := e.Group("", s.authMiddleware)
	authed.POST("/api/:command", s.dispatch)
	authed.GET("/events", s.events)

	return e
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Publish pushes a progress message to every stream subscriber.
func (s *Server) Publish(ctx context.Context, message string) {
	s.hub.Publish(ctx, message)
}

// DropStreams disconnects every progress subscriber.
func (s *Server) DropStreams() {
	s.hub.Drop()
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, listener)
}

func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	s.echo.Listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("stub backend listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.echo.Start("") }()

	select {
	case err := <-errCh:
		s.jobs.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Drop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.echo.Shutdown(shutdownCtx)
	s.jobs.Stop()
	if err != nil {
		return fmt.Errorf("shutdown stub backend: %w", err)
	}
	return nil
}

// Close stops simulated jobs without a listener, for handler-only use.
func (s *Server) Close() {
	s.hub.Drop()
	s.jobs.Stop()
}

func (s *Server) register(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.users.Register(req.Username, req.Password); err != nil {
		return err
	}

	token, err := s.tokens.Issue(req.Username)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, tokenResponse{Token: token, Message: "user created"})
}

func (s *Server) login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" || req.Password == "" {
		return ErrInvalidCredentials
	}

	if err := s.users.Authenticate(req.Username, req.Password); err != nil {
		return err
	}

	token, err := s.tokens.Issue(req.Username)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (s *Server) dispatch(c echo.Context) error {
	command, err := domain.ParseJobCommand(c.Param("command"))
	if err != nil {
		return err
	}

	var spec domain.JobSpec
	for _, candidate := range domain.Catalogue() {
		if candidate.Command == command {
			spec = candidate
			break
		}
	}

	claims, _ := c.Get(claimsKey).(tokenClaims)
	runID, err := s.jobs.Start(spec, claims.Username)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("%s started", describe(spec)), RunID: runID})
}

func (s *Server) events(c echo.Context) error {
	var lastID uint64
	if raw := c.Request().Header.Get("Last-Event-ID"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid Last-Event-ID")
		}
		lastID = parsed
	}

	backlog, live, cancel := s.hub.Subscribe(lastID)
	defer cancel()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(resp, "retry: 2000\n\n"); err != nil {
		return nil
	}
	for _, event := range backlog {
		if err := writeEvent(resp, event); err != nil {
			return nil
		}
	}
	resp.Flush()

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(resp, ": heartbeat\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		case event, ok := <-live:
			if !ok {
				return nil
			}
			if err := writeEvent(resp, event); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event hubEvent) error {
	data, err := encodeMessage(event.Message)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.ID, data)
	return err
}

func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
		}

		claims, err := s.tokens.Verify(parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := s.resolveError(err, c)
	_ = c.JSON(code, errorResponse{Error: msg})
}

func (s *Server) resolveError(err error, c echo.Context) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, ErrUserExists):
		return http.StatusConflict, "username taken"
	case errors.Is(err, ErrJobRunning):
		return http.StatusConflict, "job already running"
	case errors.Is(err, domain.ErrUnknownCommand):
		return http.StatusNotFound, "unknown job command"
	}

	s.logger.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
