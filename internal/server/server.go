// Package server exposes research missions, their history and the chat
// assistant over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/config"
	"github.com/mohammad-safakhou/researchpilot/internal/history"
	"github.com/mohammad-safakhou/researchpilot/internal/mission"
	"github.com/mohammad-safakhou/researchpilot/internal/telemetry"
)

// Runner streams one mission.
type Runner interface {
	Stream(ctx context.Context, req mission.Request, sink mission.Sink) error
}

// Chatter answers a free-form message.
type Chatter interface {
	Reply(ctx context.Context, message string) (string, error)
}

// Deps are the collaborators behind the routes. Chat and Metrics may be nil.
type Deps struct {
	Runner  Runner
	History history.Store
	Chat    Chatter
	Metrics *telemetry.Metrics
	Logger  *zap.Logger
}

// Server is the echo application.
type Server struct {
	echo    *echo.Echo
	cfg     config.ServerConfig
	runner  Runner
	history history.Store
	chat    Chatter
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// New builds the routes. The upload directory is created when missing.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Runner == nil {
		return nil, errors.New("server: runner missing")
	}
	if deps.History == nil {
		deps.History = history.NewMemoryStore()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}

	s := &Server{
		echo:    echo.New(),
		cfg:     cfg,
		runner:  deps.Runner,
		history: deps.History,
		chat:    deps.Chat,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.handleError

	origins := s.cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	if s.cfg.MaxUploadMB > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.cfg.MaxUploadMB)))
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	e.GET("/research", s.research)

	api := e.Group("/api/v1")
	api.POST("/upload", s.upload)
	api.POST("/chat", s.chatReply)
	sessions := &SessionsHandler{store: s.history, logger: s.logger}
	sessions.Register(api.Group("/sessions"))
}

// handleError renders every error as {"error": msg} and logs it.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	s.logger.Warn("request failed",
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("remote", c.RealIP()),
		zap.Error(err),
	)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr, falling back to the configured address.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = s.cfg.Address
	}
	if addr == "" {
		addr = ":8000"
	}
	s.logger.Info("listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
