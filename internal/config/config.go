package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// ErrMissingBackend is returned when the remote backend is selected but not configured
var ErrMissingBackend = errors.New("remote backend is not configured")

// Config holds user preferences
type Config struct {
	Backend        string        `yaml:"backend" json:"backend"`                 // "local" or "remote"
	ServerURL      string        `yaml:"server_url" json:"server_url"`           // Remote backend base URL
	DBPath         string        `yaml:"db_path" json:"db_path"`                 // Local task database
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"` // Per remote request
	ConfirmDelete  bool          `yaml:"confirm_delete" json:"confirm_delete"`   // Require confirmation for delete

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging

	path string
}

// Dir returns the irontodo state directory (~/.irontodo)
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".irontodo"), nil
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir, _ := Dir()
	logPath, dbPath := "", ""
	if dir != "" {
		logPath = filepath.Join(dir, "logs", "irontodo.log")
		dbPath = filepath.Join(dir, "tasks.db")
	}

	return &Config{
		Backend:        getEnv("IRONTODO_BACKEND", BackendLocal),
		ServerURL:      getEnv("IRONTODO_SERVER_URL", ""),
		DBPath:         dbPath,
		RequestTimeout: 10 * time.Second,
		ConfirmDelete:  true,
		LogLevel:       getEnv("IRONTODO_LOG_LEVEL", "INFO"),
		LogFile:        getEnv("IRONTODO_LOG_FILE", logPath),
		LogConsole:     getEnv("IRONTODO_LOG_CONSOLE", "false") == "true",
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Path returns the default config file path
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads config from ~/.irontodo/config.yaml
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads config from path, returning defaults if the file does not exist.
// Environment variables override the file.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Backend = getEnv("IRONTODO_BACKEND", c.Backend)
	c.ServerURL = getEnv("IRONTODO_SERVER_URL", c.ServerURL)
	c.LogLevel = getEnv("IRONTODO_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("IRONTODO_LOG_FILE", c.LogFile)
	if v := os.Getenv("IRONTODO_LOG_CONSOLE"); v != "" {
		c.LogConsole = v == "true"
	}
}

// Validate checks the backend selection. A remote backend without a server URL
// is reported as ErrMissingBackend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for the local backend")
		}
	case BackendRemote:
		if c.ServerURL == "" {
			return fmt.Errorf("%w: set server_url in config or IRONTODO_SERVER_URL", ErrMissingBackend)
		}
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendLocal, BackendRemote)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}

// Save saves config to the file it was loaded from (default ~/.irontodo/config.yaml)
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
