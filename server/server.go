// Package server is the reference task backend: accounts, a per-owner task
// table and a realtime change feed over websockets.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
)

// MemoryDatabaseURL selects the in-memory repository
const MemoryDatabaseURL = "memory"

// Server is the task backend
type Server struct {
	repo Repository
	hub  *Hub
	echo *echo.Echo

	// writeMu serializes task mutations with their publish so every feed
	// sees changes in commit order
	writeMu sync.Mutex

	passwordCost int
	sessionTTL   time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithPasswordCost sets the bcrypt cost for new password hashes
func WithPasswordCost(cost int) Option {
	return func(s *Server) { s.passwordCost = cost }
}

// WithSessionTTL sets how long a login session stays valid
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) { s.sessionTTL = ttl }
}

// New creates a server backed by PostgreSQL at dbURL, or by memory if dbURL
// is MemoryDatabaseURL
func New(ctx context.Context, dbURL string, opts ...Option) (*Server, error) {
	if dbURL == MemoryDatabaseURL {
		logger.Warn("Using in-memory repository, data is lost on exit")
		return NewWithRepository(NewMemoryRepository(), opts...), nil
	}

	repo, err := OpenPostgres(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	return NewWithRepository(repo, opts...), nil
}

// NewWithRepository creates a server over repo
func NewWithRepository(repo Repository, opts ...Option) *Server {
	s := &Server{
		repo:         repo,
		hub:          NewHub(),
		passwordCost: bcrypt.DefaultCost,
		sessionTTL:   30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request logging
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			res := c.Response()
			logger.Info("HTTP Request",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("remote", req.RemoteAddr),
				logger.F("status", res.Status),
				logger.F("size", res.Size),
				logger.F("request_id", res.Header().Get(echo.HeaderXRequestID)),
				logger.F("duration", time.Since(start).String()))

			return err
		}
	})

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Health check
	e.GET("/health", s.handleHealth)

	// API v1
	api := e.Group("/api/v1")

	// Auth endpoints (public)
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)

	// Protected endpoints
	protected := api.Group("")
	protected.Use(s.authMiddleware)
	protected.GET("/me", s.handleMe)
	protected.POST("/logout", s.handleLogout)
	protected.GET("/tasks", s.handleListTasks)
	protected.POST("/tasks", s.handleCreateTask)
	protected.GET("/tasks/changes", s.handleChanges)
	protected.PATCH("/tasks/:id", s.handlePatchTask)
	protected.DELETE("/tasks/:id", s.handleDeleteTask)

	s.echo = e
}

// Hub returns the change hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for running ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.echo.Shutdown(ctx)
}

// Close closes open feeds and the repository
func (s *Server) Close() error {
	s.hub.Close()
	return s.repo.Close()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// jsonError writes the {"error": msg} body every failure uses
func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
