package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/existflow/irontodo/internal/model"
)

var (
	// ErrTaskNotFound is returned when no task id starts with the given reference
	ErrTaskNotFound = errors.New("task not found")
	// ErrAmbiguousID is returned when a reference matches more than one task
	ErrAmbiguousID = errors.New("task id is ambiguous")
)

// shortIDLen is how much of a server-generated id is printed
const shortIDLen = 8

// resolveTask finds the task whose id equals ref, or the only one starting with it
func resolveTask(tasks []model.Task, ref string) (model.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Task{}, fmt.Errorf("%w: empty id", ErrTaskNotFound)
	}

	var matches []model.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return model.Task{}, fmt.Errorf("%w: %s matches %d tasks", ErrAmbiguousID, ref, len(matches))
	}
}

// shortID shortens uuid-style ids. Local ids are short already.
func shortID(id string) string {
	if len(id) > shortIDLen && strings.Contains(id, "-") {
		return id[:shortIDLen]
	}
	return id
}
