package model

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyText is returned when a task text is empty after trimming
var ErrEmptyText = errors.New("task text is empty")

// Task represents a single todo item
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	OwnerID   string    `json:"user_id"`
}

// TaskPatch holds the fields of an update request. Nil fields are left alone.
type TaskPatch struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Empty returns true if the patch changes nothing
func (p TaskPatch) Empty() bool {
	return p.Text == nil && p.Completed == nil
}

// NormalizeText trims s and rejects it if nothing is left
func NormalizeText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyText
	}
	return s, nil
}

// IndexOf returns the position of the task with the given id, or -1
func IndexOf(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
