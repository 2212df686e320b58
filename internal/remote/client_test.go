package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/existflow/irontodo/server"
	"github.com/matryer/is"
	"golang.org/x/crypto/bcrypt"
)

// newBackendServer starts the reference server on an in-memory repository
func newBackendServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()
	srv := server.NewWithRepository(server.NewMemoryRepository(), server.WithPasswordCost(bcrypt.MinCost))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func newLoggedInClient(t *testing.T, serverURL, username string) *Client {
	t.Helper()
	c, err := NewClient(serverURL, filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Register(context.Background(), username, username+"@example.com", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	is := is.New(t)
	for _, u := range []string{"", "not a url", "localhost:8080"} {
		_, err := NewClient(u, filepath.Join(t.TempDir(), "session.json"))
		is.True(err != nil)
	}
}

func TestClient_Session(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	_, ts := newBackendServer(t)
	sessionPath := filepath.Join(t.TempDir(), "state", "session.json")

	c, err := NewClient(ts.URL+"/", sessionPath)
	is.NoErr(err)
	is.True(!c.IsLoggedIn())
	is.Equal(c.Session().ServerURL, ts.URL) // trailing slash trimmed

	is.NoErr(c.Register(ctx, "alice", "alice@example.com", "correct horse"))
	is.True(c.IsLoggedIn())
	sess := c.Session()
	is.Equal(sess.Username, "alice")
	is.True(sess.UserID != "")

	info, err := os.Stat(sessionPath)
	is.NoErr(err)
	is.Equal(info.Mode().Perm(), os.FileMode(0600))

	data, err := os.ReadFile(sessionPath)
	is.NoErr(err)
	var saved Session
	is.NoErr(json.Unmarshal(data, &saved))
	is.Equal(saved, sess)

	me, err := c.Me(ctx)
	is.NoErr(err)
	is.Equal(me.ID, sess.UserID)
	is.Equal(me.Username, "alice")

	t.Run("restored by a new client", func(t *testing.T) {
		is := is.New(t)
		c2, err := NewClient(ts.URL, sessionPath)
		is.NoErr(err)
		is.True(c2.IsLoggedIn())
		is.Equal(c2.Session(), sess)
	})

	t.Run("not reused for another server", func(t *testing.T) {
		is := is.New(t)
		c3, err := NewClient("http://127.0.0.1:1", sessionPath)
		is.NoErr(err)
		is.True(!c3.IsLoggedIn())
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		is := is.New(t)
		is.NoErr(c.Logout(ctx))
		is.True(!c.IsLoggedIn())
		is.Equal(c.Session().ServerURL, ts.URL)

		stale, err := NewClient(ts.URL, sessionPath)
		is.NoErr(err)
		is.True(!stale.IsLoggedIn())

		// the old token no longer works either
		old, err := NewClient(ts.URL, filepath.Join(t.TempDir(), "old.json"))
		is.NoErr(err)
		old.session = sess
		_, err = old.Select(ctx, sess.UserID)
		var apiErr *APIError
		is.True(errors.As(err, &apiErr))
		is.Equal(apiErr.Status, http.StatusUnauthorized)
	})

	t.Run("login", func(t *testing.T) {
		is := is.New(t)
		err := c.Login(ctx, "alice", "wrong password")
		var apiErr *APIError
		is.True(errors.As(err, &apiErr))
		is.Equal(apiErr.Status, http.StatusUnauthorized)
		is.Equal(apiErr.Message, "invalid credentials")
		is.True(!c.IsLoggedIn())

		is.NoErr(c.Login(ctx, "alice", "correct horse"))
		is.True(c.IsLoggedIn())
		is.Equal(c.Session().UserID, sess.UserID)
	})
}

func TestClient_RegisterConflict(t *testing.T) {
	is := is.New(t)
	_, ts := newBackendServer(t)
	newLoggedInClient(t, ts.URL, "alice")

	c, err := NewClient(ts.URL, filepath.Join(t.TempDir(), "session.json"))
	is.NoErr(err)
	err = c.Register(context.Background(), "alice", "other@example.com", "correct horse")
	var apiErr *APIError
	is.True(errors.As(err, &apiErr))
	is.Equal(apiErr.Status, http.StatusConflict)
	is.True(!c.IsLoggedIn())
}

func TestClient_SubscribeRequiresLogin(t *testing.T) {
	is := is.New(t)
	_, ts := newBackendServer(t)
	c, err := NewClient(ts.URL, filepath.Join(t.TempDir(), "session.json"))
	is.NoErr(err)

	s := NewStore(c)
	_, err = s.Subscribe(context.Background(), "someone", nil)
	is.True(errors.Is(err, ErrSubscribeFailed))
	is.True(errors.Is(err, ErrNotLoggedIn))
}

func TestClient_EndToEnd(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	_, ts := newBackendServer(t)

	c := newLoggedInClient(t, ts.URL, "alice")
	owner := c.Session().UserID

	s := NewStore(c)
	is.NoErr(s.FetchAll(ctx, owner))
	is.Equal(len(s.List()), 0)

	onChange, changed := signal()
	unsubscribe, err := s.Subscribe(ctx, owner, onChange)
	is.NoErr(err)
	defer unsubscribe()

	is.NoErr(s.RequestAdd(ctx, owner, "A"))
	waitChange(t, changed)
	is.NoErr(s.RequestAdd(ctx, owner, "B"))
	waitChange(t, changed)
	is.Equal(texts(s.List()), []string{"B", "A"})

	a := s.List()[1]
	is.Equal(a.OwnerID, owner)
	is.NoErr(s.RequestToggle(ctx, a.ID, a.Completed))
	waitChange(t, changed)
	is.True(s.List()[1].Completed)

	is.NoErr(s.RequestUpdate(ctx, a.ID, " A edited "))
	waitChange(t, changed)
	is.Equal(s.List()[1].Text, "A edited")

	is.NoErr(s.RequestDelete(ctx, a.ID))
	waitChange(t, changed)
	is.Equal(texts(s.List()), []string{"B"})

	// a fresh fetch agrees with the cache built from the feed
	fresh := NewStore(c)
	is.NoErr(fresh.FetchAll(ctx, owner))
	is.Equal(fresh.List(), s.List())

	err = s.RequestToggle(ctx, "00000000-0000-0000-0000-000000000000", false)
	is.True(errors.Is(err, ErrRequestFailed))
	var apiErr *APIError
	is.True(errors.As(err, &apiErr))
	is.Equal(apiErr.Status, http.StatusNotFound)
}

func TestClient_FeedsAreIsolatedPerOwner(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	_, ts := newBackendServer(t)

	alice := newLoggedInClient(t, ts.URL, "alice")
	bob := newLoggedInClient(t, ts.URL, "bob")

	aliceStore := NewStore(alice)
	onChange, changed := signal()
	unsubscribe, err := aliceStore.Subscribe(ctx, alice.Session().UserID, onChange)
	is.NoErr(err)
	defer unsubscribe()

	bobStore := NewStore(bob)
	is.NoErr(bobStore.RequestAdd(ctx, bob.Session().UserID, "bob's"))
	is.NoErr(aliceStore.RequestAdd(ctx, alice.Session().UserID, "alice's"))
	waitChange(t, changed)

	is.Equal(texts(aliceStore.List()), []string{"alice's"})

	// alice cannot write as bob
	err = aliceStore.RequestAdd(ctx, bob.Session().UserID, "sneaky")
	is.True(errors.Is(err, ErrRequestFailed))

	_, err = alice.Subscribe(ctx, bob.Session().UserID)
	var apiErr *APIError
	is.True(errors.As(err, &apiErr))
	is.Equal(apiErr.Status, http.StatusForbidden)
}

func TestClient_FeedEndsWhenServerCloses(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	srv, ts := newBackendServer(t)
	c := newLoggedInClient(t, ts.URL, "alice")

	feed, err := c.Subscribe(ctx, c.Session().UserID)
	is.NoErr(err)
	defer feed.Close()

	srv.Hub().Close()

	for range feed.Changes() {
	}
	is.True(feed.Err() != nil) // going away, not a normal close

	is.NoErr(feed.Close())
	is.NoErr(feed.Close())
}

func TestClient_FeedClosedByClient(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	_, ts := newBackendServer(t)
	c := newLoggedInClient(t, ts.URL, "alice")

	feed, err := c.Subscribe(ctx, c.Session().UserID)
	is.NoErr(err)

	is.NoErr(feed.Close())
	for range feed.Changes() {
	}
	is.NoErr(feed.Err())
}

func TestAPIError(t *testing.T) {
	is := is.New(t)
	is.Equal((&APIError{Status: 404, Message: "task not found"}).Error(), "server returned 404: task not found")
	is.Equal((&APIError{Status: 502}).Error(), "server returned 502 Bad Gateway")
}
