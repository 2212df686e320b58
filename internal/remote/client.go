package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/internal/model"
	"github.com/gorilla/websocket"
)

const apiPrefix = "/api/v1"

// ErrNotLoggedIn is returned by backend calls made without a session
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx answer from the backend
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Session holds the credentials persisted between runs
type Session struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
}

// Client talks to the task backend over HTTP and websockets
type Client struct {
	sessionPath string
	httpClient  *http.Client
	dialer      *websocket.Dialer

	mu      sync.RWMutex
	session Session
}

var _ Backend = (*Client)(nil)

// DefaultSessionPath returns ~/.irontodo/session.json
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".irontodo", "session.json"), nil
}

// NewClient creates a client for serverURL, restoring the session saved at
// sessionPath. A saved session for a different server is not reused.
func NewClient(serverURL, sessionPath string) (*Client, error) {
	serverURL = strings.TrimRight(serverURL, "/")
	if _, err := url.ParseRequestURI(serverURL); err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}

	c := &Client{
		sessionPath: sessionPath,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	c.loadSession()

	if c.session.ServerURL != serverURL {
		if c.session.Token != "" {
			logger.Info("Ignoring session for another server",
				logger.F("saved", c.session.ServerURL),
				logger.F("server", serverURL))
		}
		c.session = Session{ServerURL: serverURL}
	}
	return c, nil
}

func (c *Client) loadSession() {
	data, err := os.ReadFile(c.sessionPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read session", logger.F("path", c.sessionPath), logger.F("error", err))
		}
		return
	}
	if err := json.Unmarshal(data, &c.session); err != nil {
		logger.Warn("Discarding unreadable session", logger.F("path", c.sessionPath), logger.F("error", err))
		c.session = Session{}
	}
}

// saveSession writes the session file. Caller holds c.mu.
func (c *Client) saveSession() error {
	if err := os.MkdirAll(filepath.Dir(c.sessionPath), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(c.session, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.sessionPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// IsLoggedIn returns true if the client holds a session token
func (c *Client) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Token != ""
}

// Session returns a copy of the current session
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`
}

// Register creates an account and logs in as it
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	return c.storeSession(username, resp)
}

// Login authenticates with username and password
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return c.storeSession(username, resp)
}

func (c *Client) storeSession(username string, resp authResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Token = resp.Token
	c.session.UserID = resp.UserID
	c.session.Username = username
	logger.Info("Logged in", logger.F("user", username), logger.F("user_id", resp.UserID))
	return c.saveSession()
}

// Logout revokes the session on the server, then forgets it locally.
// The local session is cleared even if the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	var remoteErr error
	if c.IsLoggedIn() {
		remoteErr = c.do(ctx, http.MethodPost, "/logout", nil, nil)
		if remoteErr != nil {
			logger.Warn("Server logout failed", logger.F("error", remoteErr))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = Session{ServerURL: c.session.ServerURL}
	if err := c.saveSession(); err != nil {
		return err
	}
	return remoteErr
}

// Me returns the account behind the current session
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Select fetches the owner's tasks
func (c *Client) Select(ctx context.Context, ownerID string) ([]model.Task, error) {
	var tasks []model.Task
	path := "/tasks?user_id=" + url.QueryEscape(ownerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Insert creates a task. The owner is the session user.
func (c *Client) Insert(ctx context.Context, ownerID, text string) error {
	if owner := c.Session().UserID; ownerID != owner {
		return fmt.Errorf("cannot insert for %q while logged in as %q", ownerID, owner)
	}
	return c.do(ctx, http.MethodPost, "/tasks", map[string]string{"text": text}, nil)
}

// Patch updates a task
func (c *Client) Patch(ctx context.Context, id string, patch model.TaskPatch) error {
	return c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), patch, nil)
}

// Delete removes a task
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

// Subscribe dials the owner's change feed
func (c *Client) Subscribe(ctx context.Context, ownerID string) (Feed, error) {
	sess := c.Session()
	if sess.Token == "" {
		return nil, ErrNotLoggedIn
	}

	u, err := url.Parse(sess.ServerURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u = u.JoinPath(apiPrefix, "tasks", "changes")
	u.RawQuery = url.Values{"user_id": {ownerID}}.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+sess.Token)

	logger.Debug("Dialing change feed", logger.F("url", u.String()))
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeAPIError(resp)
		}
		return nil, fmt.Errorf("failed to dial change feed: %w", err)
	}
	return newSocketFeed(conn), nil
}

// do sends one JSON request and decodes a JSON answer into out (if not nil)
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	sess := c.Session()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, sess.ServerURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("HTTP request failed",
			logger.F("method", method),
			logger.F("path", path),
			logger.F("error", err))
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("HTTP response",
		logger.F("method", method),
		logger.F("path", path),
		logger.F("status", resp.StatusCode),
		logger.F("duration", time.Since(start).String()))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
