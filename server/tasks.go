package server

import (
	"errors"
	"net/http"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/internal/model"
	"github.com/labstack/echo/v4"
)

type createTaskRequest struct {
	Text string `json:"text"`
}

// handleListTasks returns the owner's tasks, newest first
func (s *Server) handleListTasks(c echo.Context) error {
	userID, ok := ownerOf(c)
	if !ok {
		return jsonError(c, http.StatusForbidden, "user_id does not match session")
	}

	tasks, err := s.repo.ListTasks(c.Request().Context(), userID)
	if err != nil {
		logger.Error("Listing tasks failed", logger.F("user_id", userID), logger.F("error", err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, tasks)
}

// handleCreateTask inserts a task and publishes an INSERT
func (s *Server) handleCreateTask(c echo.Context) error {
	userID := c.Get(ctxUserID).(string)

	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}
	text, err := model.NormalizeText(req.Text)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "text must not be empty")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	task, err := s.repo.InsertTask(c.Request().Context(), userID, text)
	if err != nil {
		logger.Error("Inserting task failed", logger.F("user_id", userID), logger.F("error", err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}
	s.hub.Publish(userID, model.Inserted(task))

	logger.Debug("Task created", logger.F("id", task.ID), logger.F("user_id", userID))
	return c.JSON(http.StatusCreated, task)
}

// handlePatchTask updates text and/or completed and publishes an UPDATE
func (s *Server) handlePatchTask(c echo.Context) error {
	userID := c.Get(ctxUserID).(string)
	id := c.Param("id")

	var patch model.TaskPatch
	if err := c.Bind(&patch); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}
	if patch.Empty() {
		return jsonError(c, http.StatusBadRequest, "nothing to update")
	}
	if patch.Text != nil {
		text, err := model.NormalizeText(*patch.Text)
		if err != nil {
			return jsonError(c, http.StatusBadRequest, "text must not be empty")
		}
		patch.Text = &text
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	task, err := s.repo.UpdateTask(c.Request().Context(), id, userID, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "task not found")
		}
		logger.Error("Updating task failed", logger.F("id", id), logger.F("error", err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}
	s.hub.Publish(userID, model.Updated(task))

	return c.JSON(http.StatusOK, task)
}

// handleDeleteTask deletes a task and publishes a DELETE
func (s *Server) handleDeleteTask(c echo.Context) error {
	userID := c.Get(ctxUserID).(string)
	id := c.Param("id")

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.DeleteTask(c.Request().Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "task not found")
		}
		logger.Error("Deleting task failed", logger.F("id", id), logger.F("error", err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}
	s.hub.Publish(userID, model.Deleted(id, userID))

	return c.NoContent(http.StatusNoContent)
}
