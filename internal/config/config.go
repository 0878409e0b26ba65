// Package config provides configuration management for the markerlane agent.
// Process settings come from environment variables with sensible defaults;
// review rules live in a TOML file (see review.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// Default values
	DefaultPort            = 8788
	DefaultLogLevel        = "info"
	DefaultDataDir         = ".markerlane"
	DefaultStashURL        = "http://localhost:9999"
	DefaultSyncConcurrency = 4

	// Environment variable names
	EnvPort            = "MARKERLANE_PORT"
	EnvLogLevel        = "MARKERLANE_LOG_LEVEL"
	EnvDataDir         = "MARKERLANE_DATA_DIR"
	EnvStashURL        = "MARKERLANE_STASH_URL"
	EnvStashAPIKey     = "MARKERLANE_STASH_API_KEY"
	EnvReviewConfig    = "MARKERLANE_REVIEW_CONFIG"
	EnvHeadless        = "MARKERLANE_HEADLESS"
	EnvSyncConcurrency = "MARKERLANE_SYNC_CONCURRENCY"
	EnvAllowedOrigins  = "MARKERLANE_ALLOWED_ORIGINS"

	DBFilename     = "markerlane.db"
	LockFilename   = "markerlane.lock"
	ReviewFilename = "review.toml"

	maxSyncConcurrency = 32
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LockPath() string
	StashURL() string
	StashAPIKey() string
	ReviewConfigPath() string
	Headless() bool
	SyncConcurrency() int
	AllowedOrigins() []string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port             int
	logLevel         string
	dataDir          string
	stashURL         string
	stashAPIKey      string
	reviewConfigPath string
	headless         bool
	syncConcurrency  int
	allowedOrigins   []string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		logLevel:        DefaultLogLevel,
		dataDir:         defaultDataDir(),
		stashURL:        DefaultStashURL,
		syncConcurrency: DefaultSyncConcurrency,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if u := strings.TrimSpace(os.Getenv(EnvStashURL)); u != "" {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return nil, fmt.Errorf("invalid %s: must be an http(s) URL", EnvStashURL)
		}
		cfg.stashURL = strings.TrimRight(u, "/")
	}

	cfg.stashAPIKey = os.Getenv(EnvStashAPIKey)
	cfg.reviewConfigPath = os.Getenv(EnvReviewConfig)
	cfg.headless = envBool(EnvHeadless)

	if sc := os.Getenv(EnvSyncConcurrency); sc != "" {
		n, err := strconv.Atoi(sc)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSyncConcurrency, err)
		}
		if n < 1 || n > maxSyncConcurrency {
			return nil, fmt.Errorf("invalid %s: must be between 1 and %d", EnvSyncConcurrency, maxSyncConcurrency)
		}
		cfg.syncConcurrency = n
	}

	for _, o := range strings.Split(os.Getenv(EnvAllowedOrigins), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.allowedOrigins = append(cfg.allowedOrigins, o)
		}
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// LockPath returns the single-instance lock file path
func (c *EnvConfig) LockPath() string {
	return filepath.Join(c.dataDir, LockFilename)
}

func (c *EnvConfig) StashURL() string {
	return c.stashURL
}

func (c *EnvConfig) StashAPIKey() string {
	return c.stashAPIKey
}

// ReviewConfigPath returns the review rules file, by default inside the data
// directory.
func (c *EnvConfig) ReviewConfigPath() string {
	if c.reviewConfigPath != "" {
		return c.reviewConfigPath
	}
	return filepath.Join(c.dataDir, ReviewFilename)
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) SyncConcurrency() int {
	return c.syncConcurrency
}

// AllowedOrigins returns the browser origins permitted to call the API
// besides loopback ones. The Stash URL is always included so the review
// plugin served by Stash can reach the agent.
func (c *EnvConfig) AllowedOrigins() []string {
	return append([]string{c.stashURL}, c.allowedOrigins...)
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
