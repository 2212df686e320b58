package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/existflow/irontodo/internal/config"
	"github.com/existflow/irontodo/internal/db"
	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/internal/remote"
	"github.com/existflow/irontodo/internal/store"
	"github.com/existflow/irontodo/internal/tui"
)

// workspace is the task backend one command runs against
type workspace struct {
	tasks tui.TaskStore
	label string

	// Remote backend only
	remote  *remote.Store
	ownerID string

	close func() error
}

// Remote reports whether requests go to the server
func (w *workspace) Remote() bool {
	return w.remote != nil
}

// Close releases the backend
func (w *workspace) Close() {
	if w.close == nil {
		return
	}
	if err := w.close(); err != nil {
		logger.Warn("Failed to close backend", logger.F("error", err))
	}
}

// openWorkspace opens the configured backend. The remote cache is filled
// before returning so ids can be resolved against it. With onChange set, the
// remote cache also follows the change feed until Close and onChange runs
// after every change it applies.
func openWorkspace(ctx context.Context, cfg *config.Config, warn io.Writer, onChange func()) (*workspace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend == config.BackendRemote {
		return openRemote(ctx, cfg, onChange)
	}
	return openLocal(cfg, warn)
}

func openLocal(cfg *config.Config, warn io.Writer) (*workspace, error) {
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open database", logger.F("path", cfg.DBPath), logger.F("error", err))
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	local := store.NewLocal(conn)
	if err := local.Load(); err != nil {
		if !errors.Is(err, store.ErrCorruptState) {
			_ = conn.Close()
			return nil, err
		}
		fmt.Fprintf(warn, "⚠️  Saved tasks could not be read and were set aside (%s). Starting empty.\n", store.CorruptKey)
	}

	return &workspace{
		tasks: tui.FromLocal(local),
		label: "local",
		close: conn.Close,
	}, nil
}

func openRemote(ctx context.Context, cfg *config.Config, onChange func()) (*workspace, error) {
	client, err := newRemoteClient(cfg)
	if err != nil {
		return nil, err
	}
	if !client.IsLoggedIn() {
		return nil, fmt.Errorf("%w: not logged in to %s (run 'irontodo auth login')", config.ErrMissingBackend, cfg.ServerURL)
	}

	sess := client.Session()
	rs := remote.NewStore(client, remote.WithRequestTimeout(cfg.RequestTimeout))
	var closeFn func() error
	if onChange != nil {
		unsubscribe, err := rs.Follow(ctx, sess.UserID, onChange)
		if err != nil {
			return nil, err
		}
		closeFn = func() error {
			unsubscribe()
			return nil
		}
	} else if err := rs.FetchAll(ctx, sess.UserID); err != nil {
		return nil, err
	}

	label := "remote"
	if sess.Username != "" {
		label += " · " + sess.Username
	}
	return &workspace{
		tasks:   tui.FromRemote(rs, sess.UserID),
		label:   label,
		remote:  rs,
		ownerID: sess.UserID,
		close:   closeFn,
	}, nil
}

// newRemoteClient creates a client for the configured server using the saved session
func newRemoteClient(cfg *config.Config) (*remote.Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("%w: set server_url in config or IRONTODO_SERVER_URL", config.ErrMissingBackend)
	}
	sessionPath, err := remote.DefaultSessionPath()
	if err != nil {
		return nil, err
	}
	return remote.NewClient(cfg.ServerURL, sessionPath)
}
