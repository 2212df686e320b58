package tui

import (
	"context"

	"github.com/existflow/irontodo/internal/model"
	"github.com/existflow/irontodo/internal/remote"
	"github.com/existflow/irontodo/internal/store"
)

// TaskStore is the task collection the list view drives
type TaskStore interface {
	List() []model.Task
	Add(ctx context.Context, text string) error
	Toggle(ctx context.Context, task model.Task) error
	Update(ctx context.Context, id, text string) error
	Delete(ctx context.Context, id string) error
}

type localStore struct {
	s *store.Local
}

// FromLocal adapts a loaded local store
func FromLocal(s *store.Local) TaskStore {
	return localStore{s: s}
}

func (l localStore) List() []model.Task { return l.s.List() }

func (l localStore) Add(_ context.Context, text string) error {
	_, err := l.s.Add(text)
	return err
}

func (l localStore) Toggle(_ context.Context, task model.Task) error {
	return l.s.Toggle(task.ID)
}

func (l localStore) Update(_ context.Context, id, text string) error {
	return l.s.Update(id, text)
}

func (l localStore) Delete(_ context.Context, id string) error {
	return l.s.Delete(id)
}

type remoteStore struct {
	s       *remote.Store
	ownerID string
}

// FromRemote adapts a remote cache for ownerID. The list changes when the
// change feed delivers, not when a request returns.
func FromRemote(s *remote.Store, ownerID string) TaskStore {
	return remoteStore{s: s, ownerID: ownerID}
}

func (r remoteStore) List() []model.Task { return r.s.List() }

func (r remoteStore) Add(ctx context.Context, text string) error {
	return r.s.RequestAdd(ctx, r.ownerID, text)
}

func (r remoteStore) Toggle(ctx context.Context, task model.Task) error {
	return r.s.RequestToggle(ctx, task.ID, task.Completed)
}

func (r remoteStore) Update(ctx context.Context, id, text string) error {
	return r.s.RequestUpdate(ctx, id, text)
}

func (r remoteStore) Delete(ctx context.Context, id string) error {
	return r.s.RequestDelete(ctx, id)
}

// Notifier returns a callback for remote.Store.Subscribe and the channel the
// view waits on. Signals coalesce and the callback never blocks.
func Notifier() (notify func(), changes <-chan struct{}) {
	ch := make(chan struct{}, 1)
	notify = func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return notify, ch
}
