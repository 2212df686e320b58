package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/internal/model"
)

// DefaultRequestTimeout bounds a single backend call
const DefaultRequestTimeout = 10 * time.Second

// Store is the client-side cache of one owner's tasks.
// Requests never modify the cache; only Apply (fed by the change feed),
// FetchAll and Follow do.
type Store struct {
	backend Backend
	timeout time.Duration

	mu    sync.Mutex
	tasks []model.Task
}

// Option configures a Store
type Option func(*Store)

// WithRequestTimeout sets the timeout for each backend call
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewStore creates an empty cache over backend
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll replaces the cache with the owner's tasks from the backend.
// On failure the cache is left as it was.
func (s *Store) FetchAll(ctx context.Context, ownerID string) error {
	tasks, err := s.fetch(ctx, ownerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	return nil
}

func (s *Store) fetch(ctx context.Context, ownerID string) ([]model.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tasks, err := s.backend.Select(ctx, ownerID)
	if err != nil {
		logger.Error("Fetching tasks failed", logger.F("owner", ownerID), logger.F("error", err))
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	logger.Debug("Fetched tasks", logger.F("owner", ownerID), logger.F("count", len(tasks)))
	return append([]model.Task(nil), tasks...), nil
}

// List returns a copy of the cache
func (s *Store) List() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Task(nil), s.tasks...)
}

// Get returns the cached task with the given id
func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := model.IndexOf(s.tasks, id); i >= 0 {
		return s.tasks[i], true
	}
	return model.Task{}, false
}

// Apply applies one change to the cache and reports whether it changed.
//   - INSERT prepends the task, or replaces a cached task with the same id
//   - UPDATE replaces the cached task with the same id, ignored if absent
//   - DELETE removes the task, ignored if absent
func (s *Store) Apply(c model.Change) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(c)
}

// apply is Apply with s.mu held
func (s *Store) apply(c model.Change) bool {
	i := model.IndexOf(s.tasks, c.Task.ID)

	switch c.Kind {
	case model.ChangeInserted:
		if i >= 0 {
			s.tasks[i] = c.Task
			return true
		}
		next := make([]model.Task, 0, len(s.tasks)+1)
		next = append(next, c.Task)
		s.tasks = append(next, s.tasks...)
		return true

	case model.ChangeUpdated:
		if i < 0 {
			return false
		}
		s.tasks[i] = c.Task
		return true

	case model.ChangeDeleted:
		if i < 0 {
			return false
		}
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
		return true

	default:
		logger.Warn("Ignoring unknown change", logger.F("kind", c.Kind), logger.F("id", c.Task.ID))
		return false
	}
}

// subscription tracks whether its feed may still mutate the cache.
// While holding, changes are queued instead of applied.
type subscription struct {
	closed  bool
	holding bool
	held    []model.Change
}

// Subscribe opens the owner's change feed and applies every change to the
// cache, calling onChange (if not nil) after each one that altered it.
// The returned function unsubscribes; once it returns no further change
// reaches the cache and onChange is not called for later changes, though a
// call already under way may still finish. Calling it again does nothing.
func (s *Store) Subscribe(ctx context.Context, ownerID string, onChange func()) (func(), error) {
	unsubscribe, _, err := s.subscribe(ctx, ownerID, onChange, false)
	return unsubscribe, err
}

// Follow opens the owner's change feed first and then fetches the owner's
// tasks. Changes that arrive while the fetch runs are held and applied on top
// of its result, so nothing committed between the two steps is lost.
// On a fetch failure the feed is closed again and the cache is unchanged.
func (s *Store) Follow(ctx context.Context, ownerID string, onChange func()) (func(), error) {
	unsubscribe, sub, err := s.subscribe(ctx, ownerID, onChange, true)
	if err != nil {
		return nil, err
	}

	tasks, err := s.fetch(ctx, ownerID)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	s.mu.Lock()
	s.tasks = tasks
	for _, c := range sub.held {
		s.apply(c)
	}
	logger.Debug("Replayed held changes", logger.F("owner", ownerID), logger.F("count", len(sub.held)))
	sub.held = nil
	sub.holding = false
	s.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	return unsubscribe, nil
}

func (s *Store) subscribe(ctx context.Context, ownerID string, onChange func(), hold bool) (func(), *subscription, error) {
	feed, err := s.backend.Subscribe(ctx, ownerID)
	if err != nil {
		logger.Error("Opening change feed failed", logger.F("owner", ownerID), logger.F("error", err))
		return nil, nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	logger.Info("Change feed opened", logger.F("owner", ownerID))

	sub := &subscription{holding: hold}
	go s.pump(ownerID, feed, sub, onChange)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			sub.closed = true
			s.mu.Unlock()

			if err := feed.Close(); err != nil {
				logger.Debug("Closing change feed", logger.F("error", err))
			}
			logger.Info("Change feed closed", logger.F("owner", ownerID))
		})
	}
	return unsubscribe, sub, nil
}

func (s *Store) pump(ownerID string, feed Feed, sub *subscription, onChange func()) {
	for c := range feed.Changes() {
		s.mu.Lock()
		if sub.closed {
			s.mu.Unlock()
			return
		}
		if sub.holding {
			sub.held = append(sub.held, c)
			s.mu.Unlock()
			continue
		}
		changed := s.apply(c)
		s.mu.Unlock()

		logger.Debug("Applied change",
			logger.F("kind", c.Kind),
			logger.F("id", c.Task.ID),
			logger.F("changed", changed))

		if changed && onChange != nil && s.live(sub) {
			onChange()
		}
	}

	if err := feed.Err(); err != nil {
		logger.Warn("Change feed ended", logger.F("owner", ownerID), logger.F("error", err))
	}
}

// live reports whether sub has not been unsubscribed
func (s *Store) live(sub *subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !sub.closed
}

// RequestAdd asks the backend to create a task. The cache changes when the
// matching INSERT arrives on the feed.
func (s *Store) RequestAdd(ctx context.Context, ownerID, text string) error {
	text, err := model.NormalizeText(text)
	if err != nil {
		return err
	}
	return s.request(ctx, "add", func(ctx context.Context) error {
		return s.backend.Insert(ctx, ownerID, text)
	})
}

// RequestToggle asks the backend to set completed to !currentCompleted
func (s *Store) RequestToggle(ctx context.Context, id string, currentCompleted bool) error {
	completed := !currentCompleted
	return s.request(ctx, "toggle", func(ctx context.Context) error {
		return s.backend.Patch(ctx, id, model.TaskPatch{Completed: &completed})
	})
}

// RequestUpdate asks the backend to replace the text of a task
func (s *Store) RequestUpdate(ctx context.Context, id, text string) error {
	text, err := model.NormalizeText(text)
	if err != nil {
		return err
	}
	return s.request(ctx, "update", func(ctx context.Context) error {
		return s.backend.Patch(ctx, id, model.TaskPatch{Text: &text})
	})
}

// RequestDelete asks the backend to delete a task
func (s *Store) RequestDelete(ctx context.Context, id string) error {
	return s.request(ctx, "delete", func(ctx context.Context) error {
		return s.backend.Delete(ctx, id)
	})
}

func (s *Store) request(ctx context.Context, op string, call func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := call(ctx); err != nil {
		logger.Error("Request failed", logger.F("op", op), logger.F("error", err))
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, op, err)
	}
	logger.Debug("Request sent", logger.F("op", op))
	return nil
}
