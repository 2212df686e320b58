// Package remote keeps a local cache of an owner's tasks in step with a remote
// task backend: an initial fetch, a realtime change feed, and mutation
// requests whose effects arrive back through the feed.
package remote

import (
	"context"
	"errors"

	"github.com/existflow/irontodo/internal/model"
)

var (
	// ErrFetchFailed wraps any failure of FetchAll
	ErrFetchFailed = errors.New("fetch failed")
	// ErrRequestFailed wraps any failure of a mutation request
	ErrRequestFailed = errors.New("request failed")
	// ErrSubscribeFailed wraps a failure to open the change feed
	ErrSubscribeFailed = errors.New("subscribe failed")
)

// Backend is the row store and change feed the cache talks to
type Backend interface {
	// Select returns the owner's tasks, newest first.
	Select(ctx context.Context, ownerID string) ([]model.Task, error)

	// Insert creates a task for the owner.
	Insert(ctx context.Context, ownerID, text string) error

	// Patch updates the given fields of a task.
	Patch(ctx context.Context, id string, patch model.TaskPatch) error

	// Delete removes a task.
	Delete(ctx context.Context, id string) error

	// Subscribe opens a change feed for the owner. ctx bounds the
	// connection setup only; the feed lives until Close.
	Subscribe(ctx context.Context, ownerID string) (Feed, error)
}

// Feed is an open change-notification channel
type Feed interface {
	// Changes delivers changes in the order the backend emitted them.
	// The channel is closed when the feed ends.
	Changes() <-chan model.Change

	// Err reports why the feed ended, nil if it was closed by Close.
	Err() error

	// Close terminates the feed. Safe to call more than once.
	Close() error
}
