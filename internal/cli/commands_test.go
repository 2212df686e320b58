package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/existflow/irontodo/internal/config"
	"github.com/existflow/irontodo/internal/db"
	"github.com/existflow/irontodo/internal/model"
	"github.com/existflow/irontodo/internal/remote"
	"github.com/existflow/irontodo/internal/store"
	"github.com/existflow/irontodo/server"
	"github.com/matryer/is"
	"golang.org/x/crypto/bcrypt"
)

// setupHome points the config, database and session at a fresh directory
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"IRONTODO_BACKEND", "IRONTODO_SERVER_URL",
		"IRONTODO_LOG_LEVEL", "IRONTODO_LOG_FILE", "IRONTODO_LOG_CONSOLE",
	} {
		t.Setenv(k, "")
	}
	return home
}

// execute runs the command line with stdin and returns everything printed
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	listPending, deleteForce, authUsername = false, false, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := execute(t, stdin, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

// localTasks reads the persisted collection the way the next run would
func localTasks(t *testing.T, home string) []model.Task {
	t.Helper()
	conn, err := db.Open(filepath.Join(home, ".irontodo", "tasks.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer conn.Close()

	local := store.NewLocal(conn)
	if err := local.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return local.List()
}

func TestCommands_Local(t *testing.T) {
	is := is.New(t)
	home := setupHome(t)

	out := mustExecute(t, "", "list")
	is.True(strings.Contains(out, "No tasks found"))

	out = mustExecute(t, "", "add", "Buy", "milk")
	is.True(strings.Contains(out, `✓ Added: "Buy milk"`))
	mustExecute(t, "", "add", "  Walk the dog  ")

	tasks := localTasks(t, home)
	is.Equal(len(tasks), 2)
	is.Equal(tasks[0].Text, "Buy milk")
	is.Equal(tasks[1].Text, "Walk the dog")

	out = mustExecute(t, "", "ls")
	is.True(strings.Contains(out, "(2 pending, 2 total)"))
	is.True(strings.Contains(out, tasks[0].ID))

	out = mustExecute(t, "", "done", tasks[0].ID)
	is.True(strings.Contains(out, `✓ Completed: "Buy milk"`))
	is.True(localTasks(t, home)[0].Completed)

	out = mustExecute(t, "", "done", tasks[0].ID)
	is.True(strings.Contains(out, `○ Reopened: "Buy milk"`))
	is.True(!localTasks(t, home)[0].Completed)

	mustExecute(t, "", "edit", tasks[1].ID, "Walk", "the", "cat")
	is.Equal(localTasks(t, home)[1].Text, "Walk the cat")

	out = mustExecute(t, "n\n", "rm", tasks[1].ID)
	is.True(strings.Contains(out, "Cancelled."))
	is.Equal(len(localTasks(t, home)), 2)

	out = mustExecute(t, "y\n", "delete", tasks[1].ID)
	is.True(strings.Contains(out, `Deleted: "Walk the cat"`))
	tasks = localTasks(t, home)
	is.Equal(len(tasks), 1)
	is.Equal(tasks[0].Text, "Buy milk")
}

func TestCommands_Errors(t *testing.T) {
	is := is.New(t)
	setupHome(t)

	_, err := execute(t, "", "add", "   ")
	is.True(errors.Is(err, model.ErrEmptyText))

	_, err = execute(t, "", "done", "42")
	is.True(errors.Is(err, ErrTaskNotFound))

	_, err = execute(t, "", "edit", "42", " ")
	is.True(errors.Is(err, model.ErrEmptyText))
}

func TestCommands_RemoteNotConfigured(t *testing.T) {
	is := is.New(t)
	setupHome(t)
	t.Setenv("IRONTODO_BACKEND", config.BackendRemote)

	_, err := execute(t, "", "list")
	is.True(errors.Is(err, config.ErrMissingBackend)) // no server url

	t.Setenv("IRONTODO_SERVER_URL", "http://127.0.0.1:1")
	_, err = execute(t, "", "list")
	is.True(errors.Is(err, config.ErrMissingBackend)) // not logged in
}

func TestCommands_Remote(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	setupHome(t)

	srv := server.NewWithRepository(server.NewMemoryRepository(), server.WithPasswordCost(bcrypt.MinCost))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	t.Setenv("IRONTODO_BACKEND", config.BackendRemote)
	t.Setenv("IRONTODO_SERVER_URL", ts.URL)

	out := mustExecute(t, "alice@example.com\ncorrect horse\ncorrect horse\n", "auth", "register", "-u", "alice")
	is.True(strings.Contains(out, "Account created"))

	out = mustExecute(t, "", "add", "Buy milk")
	is.True(strings.Contains(out, `✓ Sent: "Buy milk"`))

	out = mustExecute(t, "", "list")
	is.True(strings.Contains(out, "Buy milk"))
	is.True(strings.Contains(out, "remote · alice"))

	sessionPath, err := remote.DefaultSessionPath()
	is.NoErr(err)
	client, err := remote.NewClient(ts.URL, sessionPath)
	is.NoErr(err)
	tasks, err := client.Select(ctx, client.Session().UserID)
	is.NoErr(err)
	is.Equal(len(tasks), 1)

	out = mustExecute(t, "", "done", shortID(tasks[0].ID))
	is.True(strings.Contains(out, `✓ Completed: "Buy milk"`))
	out = mustExecute(t, "", "list")
	is.True(strings.Contains(out, "[x]"))

	out = mustExecute(t, "", "auth", "status")
	is.True(strings.Contains(out, "Logged in as alice <alice@example.com>"))

	out = mustExecute(t, "", "auth", "logout")
	is.True(strings.Contains(out, "Logged out"))

	_, err = execute(t, "", "list")
	is.True(errors.Is(err, config.ErrMissingBackend))

	out = mustExecute(t, "correct horse\n", "auth", "login", "-u", "alice")
	is.True(strings.Contains(out, "Logged in successfully"))
	out = mustExecute(t, "", "list")
	is.True(strings.Contains(out, "Buy milk"))
}
