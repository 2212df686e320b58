package server

import (
	"context"
	"sync"
	"time"

	"github.com/existflow/irontodo/internal/model"
	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process memory. Used for development
// (DATABASE_URL=memory) and tests.
type MemoryRepository struct {
	mu       sync.Mutex
	users    map[string]model.User
	sessions map[string]model.Session
	tasks    []model.Task // insertion order
	now      func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[string]model.User),
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

func (r *MemoryRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return model.User{}, ErrConflict
		}
	}

	u := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    r.now(),
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryRepository) UserByUsername(ctx context.Context, username string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (r *MemoryRepository) UserByID(ctx context.Context, id string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepository) CreateSession(ctx context.Context, session model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.Token]; ok {
		return ErrConflict
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.now()
	}
	r.sessions[session.Token] = session
	return nil
}

func (r *MemoryRepository) SessionByToken(ctx context.Context, token string) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) DeleteSession(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
	return nil
}

func (r *MemoryRepository) ListTasks(ctx context.Context, ownerID string) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []model.Task{}
	for i := len(r.tasks) - 1; i >= 0; i-- {
		if r.tasks[i].OwnerID == ownerID {
			out = append(out, r.tasks[i])
		}
	}
	return out, nil
}

func (r *MemoryRepository) InsertTask(ctx context.Context, ownerID, text string) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[ownerID]; !ok {
		return model.Task{}, ErrNotFound
	}

	t := model.Task{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: r.now(),
		OwnerID:   ownerID,
	}
	r.tasks = append(r.tasks, t)
	return t, nil
}

func (r *MemoryRepository) UpdateTask(ctx context.Context, id, ownerID string, patch model.TaskPatch) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(id, ownerID)
	if i < 0 {
		return model.Task{}, ErrNotFound
	}
	if patch.Text != nil {
		r.tasks[i].Text = *patch.Text
	}
	if patch.Completed != nil {
		r.tasks[i].Completed = *patch.Completed
	}
	return r.tasks[i], nil
}

func (r *MemoryRepository) DeleteTask(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(id, ownerID)
	if i < 0 {
		return ErrNotFound
	}
	r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
	return nil
}

func (r *MemoryRepository) find(id, ownerID string) int {
	for i, t := range r.tasks {
		if t.ID == id && t.OwnerID == ownerID {
			return i
		}
	}
	return -1
}

func (r *MemoryRepository) Close() error {
	return nil
}
