package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/internal/model"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`
}

// handleRegister handles user registration
func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return jsonError(c, http.StatusBadRequest, "username, email, and password required")
	}

	if len(req.Password) < minPasswordLength {
		return jsonError(c, http.StatusBadRequest, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if err != nil {
		logger.Error("Password hashing failed", logger.F("error", err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}

	ctx := c.Request().Context()
	user, err := s.repo.CreateUser(ctx, req.Username, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return jsonError(c, http.StatusConflict, "username or email already exists")
		}
		logger.Error("Creating user failed", logger.F("error", err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		logger.Error("Creating session failed", logger.F("error", err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}

	logger.Info("User registered", logger.F("username", user.Username), logger.F("user_id", user.ID))

	return c.JSON(http.StatusOK, authResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		UserID:    user.ID,
	})
}

// handleLogin handles user login
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()
	user, err := s.repo.UserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Error("User lookup failed", logger.F("error", err))
		}
		return jsonError(c, http.StatusUnauthorized, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return jsonError(c, http.StatusUnauthorized, "invalid credentials")
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		logger.Error("Creating session failed", logger.F("error", err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}

	logger.Info("User logged in", logger.F("username", user.Username))

	return c.JSON(http.StatusOK, authResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		UserID:    user.ID,
	})
}

// handleMe returns current user info
func (s *Server) handleMe(c echo.Context) error {
	userID := c.Get(ctxUserID).(string)

	user, err := s.repo.UserByID(c.Request().Context(), userID)
	if err != nil {
		return jsonError(c, http.StatusNotFound, "user not found")
	}

	return c.JSON(http.StatusOK, user)
}

// handleLogout revokes the session used for the request
func (s *Server) handleLogout(c echo.Context) error {
	token := c.Get(ctxToken).(string)

	if err := s.repo.DeleteSession(c.Request().Context(), token); err != nil {
		logger.Error("Deleting session failed", logger.F("error", err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}

	return c.NoContent(http.StatusNoContent)
}

// createSession creates a new session for a user
func (s *Server) createSession(ctx context.Context, userID string) (model.Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return model.Session{}, err
	}

	now := time.Now()
	session := model.Session{
		Token:     hex.EncodeToString(tokenBytes),
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return model.Session{}, err
	}
	return session, nil
}
