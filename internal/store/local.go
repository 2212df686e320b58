// Package store holds the local task store: an ordered task collection kept in
// memory and persisted as one JSON blob after every mutation.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/internal/model"
)

const (
	// BlobKey is the key the serialized collection is stored under
	BlobKey = "tasks"
	// CorruptKey receives a copy of an unreadable blob before it is discarded
	CorruptKey = "tasks.corrupt"
)

// ErrCorruptState is returned by Load when the persisted blob cannot be used
var ErrCorruptState = errors.New("persisted task state is corrupt")

// KV is the persistence primitive the local store writes through
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// record is the persisted shape of a task
type record struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Local is the local task store
type Local struct {
	kv    KV
	now   func() time.Time
	mu    sync.Mutex
	tasks []record
	last  int64
}

// Option configures a Local store
type Option func(*Local)

// WithClock overrides the clock used to derive task ids
func WithClock(now func() time.Time) Option {
	return func(s *Local) { s.now = now }
}

// NewLocal creates a store over kv. Call Load to read the persisted state.
func NewLocal(kv KV, opts ...Option) *Local {
	s := &Local{kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collection with the persisted one.
// A missing blob gives an empty collection. An unusable blob also gives an
// empty collection, is copied to CorruptKey and reported as ErrCorruptState.
func (s *Local) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(BlobKey)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	if !ok {
		s.tasks = nil
		s.last = 0
		return nil
	}

	tasks, err := decode(raw)
	if err != nil {
		logger.Warn("Discarding corrupt task state", logger.F("error", err), logger.F("bytes", len(raw)))
		if berr := s.kv.Set(CorruptKey, raw); berr != nil {
			logger.Error("Failed to back up corrupt task state", logger.F("error", berr))
		}
		s.tasks = nil
		s.last = 0
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	s.tasks = tasks
	s.last = 0
	for _, t := range tasks {
		if t.ID > s.last {
			s.last = t.ID
		}
	}
	logger.Debug("Loaded tasks", logger.F("count", len(tasks)))
	return nil
}

func decode(raw string) ([]record, error) {
	var tasks []record
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(tasks))
	for i, t := range tasks {
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate id %d", t.ID)
		}
		seen[t.ID] = true
		text, err := model.NormalizeText(t.Text)
		if err != nil {
			return nil, fmt.Errorf("task %d at %d: %w", t.ID, i, err)
		}
		tasks[i].Text = text
	}
	return tasks, nil
}

// Add appends a new incomplete task and persists the collection
func (s *Local) Add(text string) (model.Task, error) {
	text, err := model.NormalizeText(text)
	if err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := record{ID: s.nextID(), Text: text}
	prevLast := s.last
	s.last = r.ID

	next := make([]record, len(s.tasks), len(s.tasks)+1)
	copy(next, s.tasks)
	next = append(next, r)
	if err := s.commit(next); err != nil {
		s.last = prevLast
		return model.Task{}, err
	}
	return toTask(r), nil
}

// nextID derives an id from the clock, bumped past the last issued id
func (s *Local) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	return id
}

// Delete removes the task with the given id. Unknown ids are ignored.
func (s *Local) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return nil
	}
	next := make([]record, 0, len(s.tasks)-1)
	next = append(next, s.tasks[:i]...)
	next = append(next, s.tasks[i+1:]...)
	return s.commit(next)
}

// Toggle flips the completed flag of the task with the given id
func (s *Local) Toggle(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return nil
	}
	next := clone(s.tasks)
	next[i].Completed = !next[i].Completed
	return s.commit(next)
}

// Update replaces the text of the task with the given id
func (s *Local) Update(id, text string) error {
	text, err := model.NormalizeText(text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return nil
	}
	next := clone(s.tasks)
	next[i].Text = text
	return s.commit(next)
}

// List returns a copy of the collection in insertion order
func (s *Local) List() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, len(s.tasks))
	for i, r := range s.tasks {
		out[i] = toTask(r)
	}
	return out
}

// commit persists next and only then makes it the in-memory collection.
// Caller holds s.mu.
func (s *Local) commit(next []record) error {
	if next == nil {
		next = []record{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to serialize tasks: %w", err)
	}
	if err := s.kv.Set(BlobKey, string(data)); err != nil {
		logger.Error("Failed to persist tasks", logger.F("error", err))
		return fmt.Errorf("failed to persist tasks: %w", err)
	}
	s.tasks = next
	return nil
}

func (s *Local) index(id string) int {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return -1
	}
	for i := range s.tasks {
		if s.tasks[i].ID == n {
			return i
		}
	}
	return -1
}

func clone(tasks []record) []record {
	out := make([]record, len(tasks))
	copy(out, tasks)
	return out
}

func toTask(r record) model.Task {
	return model.Task{
		ID:        strconv.FormatInt(r.ID, 10),
		Text:      r.Text,
		Completed: r.Completed,
	}
}
