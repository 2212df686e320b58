package server

import (
	"testing"

	"github.com/existflow/irontodo/internal/model"
	"github.com/matryer/is"
)

func TestHub_PublishPerOwner(t *testing.T) {
	is := is.New(t)
	h := NewHub()

	a1 := h.Subscribe("alice")
	a2 := h.Subscribe("alice")
	b := h.Subscribe("bob")
	is.Equal(h.Count("alice"), 2)

	change := model.Inserted(model.Task{ID: "1", Text: "x", OwnerID: "alice"})
	h.Publish("alice", change)

	is.Equal(<-a1.Changes(), change)
	is.Equal(<-a2.Changes(), change)
	select {
	case c := <-b.Changes():
		t.Fatalf("bob received %v", c)
	default:
	}
}

func TestHub_PublishOrder(t *testing.T) {
	is := is.New(t)
	h := NewHub()
	sub := h.Subscribe("alice")

	h.Publish("alice", model.Inserted(model.Task{ID: "1"}))
	h.Publish("alice", model.Updated(model.Task{ID: "1", Completed: true}))
	h.Publish("alice", model.Deleted("1", "alice"))

	is.Equal((<-sub.Changes()).Kind, model.ChangeInserted)
	is.Equal((<-sub.Changes()).Kind, model.ChangeUpdated)
	is.Equal((<-sub.Changes()).Kind, model.ChangeDeleted)
}

func TestHub_Unsubscribe(t *testing.T) {
	is := is.New(t)
	h := NewHub()
	sub := h.Subscribe("alice")

	h.Unsubscribe(sub)
	h.Unsubscribe(sub) // no double close

	_, ok := <-sub.Changes()
	is.True(!ok)
	is.Equal(h.Count("alice"), 0)

	h.Publish("alice", model.Deleted("1", "alice")) // nobody listening
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	is := is.New(t)
	h := NewHub()
	slow := h.Subscribe("alice")

	for i := 0; i < subscriberBuffer; i++ {
		h.Publish("alice", model.Deleted("1", "alice"))
	}
	is.Equal(h.Count("alice"), 1) // buffer exactly full

	h.Publish("alice", model.Deleted("1", "alice"))
	is.Equal(h.Count("alice"), 0)

	n := 0
	for range slow.Changes() {
		n++
	}
	is.Equal(n, subscriberBuffer) // buffered changes are still readable, then closed

	h.Unsubscribe(slow)
}

func TestHub_Close(t *testing.T) {
	is := is.New(t)
	h := NewHub()
	sub := h.Subscribe("alice")

	h.Close()
	_, ok := <-sub.Changes()
	is.True(!ok)

	late := h.Subscribe("alice")
	_, ok = <-late.Changes()
	is.True(!ok)
	is.Equal(h.Count("alice"), 0)

	h.Unsubscribe(late)
}
