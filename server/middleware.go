package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/labstack/echo/v4"
)

// Context keys set by authMiddleware
const (
	ctxUserID = "user_id"
	ctxToken  = "token"
)

// authMiddleware checks for valid session token
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Get token from Authorization header
		auth := c.Request().Header.Get("Authorization")
		if auth == "" {
			return jsonError(c, http.StatusUnauthorized, "authorization required")
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token == "" {
			return jsonError(c, http.StatusUnauthorized, "invalid authorization format")
		}

		// Validate session
		session, err := s.repo.SessionByToken(c.Request().Context(), token)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				logger.Error("Session lookup failed", logger.F("error", err))
				return jsonError(c, http.StatusInternalServerError, "internal error")
			}
			return jsonError(c, http.StatusUnauthorized, "invalid token")
		}

		if session.IsExpired() {
			return jsonError(c, http.StatusUnauthorized, "token expired")
		}

		c.Set(ctxUserID, session.UserID)
		c.Set(ctxToken, token)
		return next(c)
	}
}

// ownerOf returns the session owner. ok is false when a user_id query names
// someone else.
func ownerOf(c echo.Context) (userID string, ok bool) {
	userID = c.Get(ctxUserID).(string)
	if q := c.QueryParam("user_id"); q != "" && q != userID {
		return userID, false
	}
	return userID, true
}
