package store

import (
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/existflow/irontodo/internal/db"
	"github.com/existflow/irontodo/internal/model"
	"github.com/matryer/is"
)

// memKV is an in-memory KV with error injection
type memKV struct {
	data   map[string]string
	GetErr error
	SetErr error
	sets   int
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}}
}

func (m *memKV) Get(key string) (string, bool, error) {
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(key, value string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.sets++
	m.data[key] = value
	return nil
}

// fixedClock always returns the same instant so ids depend on the bump logic
func fixedClock() time.Time {
	return time.UnixMilli(1_700_000_000_000)
}

func newLoaded(t *testing.T, kv KV) *Local {
	t.Helper()
	s := NewLocal(kv, WithClock(fixedClock))
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return s
}

func TestLocal_LoadEmpty(t *testing.T) {
	is := is.New(t)
	s := newLoaded(t, newMemKV())
	is.Equal(len(s.List()), 0)
}

func TestLocal_Add(t *testing.T) {
	t.Run("trims and appends", func(t *testing.T) {
		is := is.New(t)
		s := newLoaded(t, newMemKV())

		task, err := s.Add("  Buy milk \n")
		is.NoErr(err)
		is.Equal(task.Text, "Buy milk")
		is.True(!task.Completed)

		list := s.List()
		is.Equal(len(list), 1)
		is.Equal(list[0], task)
	})

	t.Run("ids are unique within the same millisecond", func(t *testing.T) {
		is := is.New(t)
		s := newLoaded(t, newMemKV())

		seen := map[string]bool{}
		for i := 0; i < 5; i++ {
			task, err := s.Add("task " + strconv.Itoa(i))
			is.NoErr(err)
			is.True(!seen[task.ID])
			seen[task.ID] = true
		}
		list := s.List()
		is.Equal(len(list), 5)
		is.Equal(list[0].Text, "task 0") // insertion order
		is.Equal(list[4].Text, "task 4")
	})

	t.Run("empty text is rejected without persisting", func(t *testing.T) {
		kv := newMemKV()
		s := newLoaded(t, kv)
		for _, text := range []string{"", " ", "\t\n  "} {
			is := is.New(t)
			_, err := s.Add(text)
			is.True(errors.Is(err, model.ErrEmptyText))
			is.Equal(len(s.List()), 0)
			is.Equal(kv.sets, 0)
		}
	})
}

func TestLocal_Toggle(t *testing.T) {
	is := is.New(t)
	s := newLoaded(t, newMemKV())
	task, err := s.Add("walk the dog")
	is.NoErr(err)

	is.NoErr(s.Toggle(task.ID))
	is.True(s.List()[0].Completed)

	is.NoErr(s.Toggle(task.ID))
	is.True(!s.List()[0].Completed) // self-inverse

	before := s.List()
	is.NoErr(s.Toggle("999"))
	is.NoErr(s.Toggle("not-a-number"))
	is.Equal(s.List(), before)
}

func TestLocal_Delete(t *testing.T) {
	is := is.New(t)
	s := newLoaded(t, newMemKV())
	a, _ := s.Add("a")
	b, _ := s.Add("b")
	c, _ := s.Add("c")

	is.NoErr(s.Delete(b.ID))
	is.Equal(s.List(), []model.Task{a, c})

	is.NoErr(s.Delete(b.ID)) // idempotent
	is.Equal(s.List(), []model.Task{a, c})
}

func TestLocal_Update(t *testing.T) {
	is := is.New(t)
	s := newLoaded(t, newMemKV())
	task, _ := s.Add("Buy milk")
	is.NoErr(s.Toggle(task.ID))

	is.NoErr(s.Update(task.ID, "  Buy oat milk "))
	got := s.List()[0]
	is.Equal(got.ID, task.ID)
	is.Equal(got.Text, "Buy oat milk")
	is.True(got.Completed)

	is.True(errors.Is(s.Update(task.ID, "   "), model.ErrEmptyText))
	is.Equal(s.List()[0].Text, "Buy oat milk")

	is.NoErr(s.Update("12345", "ghost"))
	is.Equal(len(s.List()), 1)
}

func TestLocal_Scenario(t *testing.T) {
	is := is.New(t)
	s := newLoaded(t, newMemKV())

	task, err := s.Add("Buy milk")
	is.NoErr(err)
	is.Equal(len(s.List()), 1)
	is.True(!s.List()[0].Completed)

	is.NoErr(s.Toggle(task.ID))
	is.True(s.List()[0].Completed)

	is.NoErr(s.Update(task.ID, "Buy oat milk"))
	is.Equal(s.List()[0].Text, "Buy oat milk")
	is.True(s.List()[0].Completed)

	is.NoErr(s.Delete(task.ID))
	is.Equal(len(s.List()), 0)
}

func TestLocal_RoundTrip(t *testing.T) {
	is := is.New(t)
	kv := newMemKV()
	s := newLoaded(t, kv)

	a, _ := s.Add("one")
	b, _ := s.Add("two")
	_, _ = s.Add("three")
	is.NoErr(s.Toggle(a.ID))
	is.NoErr(s.Update(b.ID, "two!"))
	is.NoErr(s.Delete(a.ID))

	fresh := newLoaded(t, kv)
	is.Equal(fresh.List(), s.List())

	// ids keep increasing after a reload
	d, err := fresh.Add("four")
	is.NoErr(err)
	for _, existing := range s.List() {
		is.True(existing.ID != d.ID)
	}
}

func TestLocal_RoundTripThroughSQLite(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "tasks.db")

	conn, err := db.Open(path)
	is.NoErr(err)
	s := NewLocal(conn)
	is.NoErr(s.Load())
	task, err := s.Add("persisted")
	is.NoErr(err)
	is.NoErr(s.Toggle(task.ID))
	is.NoErr(conn.Close())

	conn, err = db.Open(path)
	is.NoErr(err)
	defer conn.Close()
	fresh := NewLocal(conn)
	is.NoErr(fresh.Load())
	is.Equal(fresh.List(), []model.Task{{ID: task.ID, Text: "persisted", Completed: true}})
}

func TestLocal_BlobFormat(t *testing.T) {
	is := is.New(t)
	kv := newMemKV()
	s := newLoaded(t, kv)
	_, err := s.Add("Buy milk")
	is.NoErr(err)

	is.Equal(kv.data[BlobKey], `[{"id":1700000000000,"text":"Buy milk","completed":false}]`)
}

func TestLocal_LoadTrimsText(t *testing.T) {
	is := is.New(t)
	kv := newMemKV()
	kv.data[BlobKey] = `[{"id":1,"text":"  Buy milk \t","completed":true}]`

	s := newLoaded(t, kv)
	tasks := s.List()
	is.Equal(len(tasks), 1)
	is.Equal(tasks[0].Text, "Buy milk")
	is.True(tasks[0].Completed)
}

func TestLocal_LoadCorrupt(t *testing.T) {
	cases := map[string]string{
		"malformed json": `[{"id":1,`,
		"wrong shape":    `{"id":1}`,
		"duplicate ids":  `[{"id":1,"text":"a"},{"id":1,"text":"b"}]`,
		"empty text":     `[{"id":1,"text":"  "}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			kv := newMemKV()
			kv.data[BlobKey] = raw

			s := NewLocal(kv)
			err := s.Load()
			is.True(errors.Is(err, ErrCorruptState))
			is.Equal(len(s.List()), 0)
			is.Equal(kv.data[CorruptKey], raw)

			// the store is usable after recovery
			_, err = s.Add("fresh start")
			is.NoErr(err)
			is.Equal(len(s.List()), 1)
		})
	}
}

func TestLocal_PersistFailureRollsBack(t *testing.T) {
	is := is.New(t)
	kv := newMemKV()
	s := newLoaded(t, kv)
	task, err := s.Add("keep me")
	is.NoErr(err)
	before := s.List()
	blob := kv.data[BlobKey]

	kv.SetErr = errors.New("disk full")

	_, err = s.Add("lost")
	is.True(err != nil)
	is.True(errors.Is(err, kv.SetErr))
	is.True(s.Toggle(task.ID) != nil)
	is.True(s.Update(task.ID, "changed") != nil)
	is.True(s.Delete(task.ID) != nil)

	is.Equal(s.List(), before)
	is.Equal(kv.data[BlobKey], blob) // memory and blob still agree
}

func TestLocal_LoadReadError(t *testing.T) {
	is := is.New(t)
	kv := newMemKV()
	kv.GetErr = errors.New("io error")

	s := NewLocal(kv)
	err := s.Load()
	is.True(errors.Is(err, kv.GetErr))
	is.True(!errors.Is(err, ErrCorruptState))
}
