package server

import (
	"context"
	"errors"

	"github.com/existflow/irontodo/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to another owner
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique column already holds the value
	ErrConflict = errors.New("already exists")
)

// Repository is the storage behind the server
type Repository interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (model.User, error)
	UserByUsername(ctx context.Context, username string) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)

	CreateSession(ctx context.Context, session model.Session) error
	SessionByToken(ctx context.Context, token string) (model.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// ListTasks returns the owner's tasks, newest first.
	ListTasks(ctx context.Context, ownerID string) ([]model.Task, error)
	InsertTask(ctx context.Context, ownerID, text string) (model.Task, error)
	// UpdateTask applies patch to the owner's task and returns the new row.
	UpdateTask(ctx context.Context, id, ownerID string, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id, ownerID string) error

	Close() error
}
