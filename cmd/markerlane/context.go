package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/markerlane/markerlane-agent/internal/config"
	"github.com/markerlane/markerlane-agent/internal/db"
	"github.com/markerlane/markerlane-agent/internal/logging"
	"github.com/markerlane/markerlane-agent/internal/review"
	"github.com/markerlane/markerlane-agent/internal/stash"
)

// commandContext lazily builds what the subcommands share.
type commandContext struct {
	reviewFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.EnvConfig
	configErr  error
}

func newCommandContext(reviewFlag, logLevelFlag *string) *commandContext {
	return &commandContext{reviewFlag: reviewFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.EnvConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := config.New()
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) reviewPath() string {
	if c.reviewFlag != nil {
		if p := strings.TrimSpace(*c.reviewFlag); p != "" {
			return p
		}
	}
	return c.config.ReviewConfigPath()
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag != nil && *c.logLevelFlag != "" {
		return *c.logLevelFlag
	}
	return c.config.LogLevel()
}

// cliLogger logs to stderr so command output on stdout stays clean.
func (c *commandContext) cliLogger() *slog.Logger {
	return logging.NewLoggerTo(os.Stderr, c.logLevel())
}

func (c *commandContext) loadReview(logger *slog.Logger) (*config.Review, error) {
	path := c.reviewPath()
	rules, exists, err := config.LoadReview(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.Warn("review config not found, using defaults", "path", logging.SanitizePath(path))
	}
	return rules, nil
}

// store is an open cache database with its repository.
type store struct {
	db   *db.DB
	repo *review.SQLiteRepository
}

func (s *store) Close() error {
	return s.db.Close()
}

func (c *commandContext) openStore(logger *slog.Logger) (*store, error) {
	if err := os.MkdirAll(c.config.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	database, err := db.New(c.config.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &store{db: database, repo: review.NewRepository(database.Conn())}, nil
}

func (c *commandContext) stashClient(logger *slog.Logger) *stash.Client {
	return stash.NewClient(c.config.StashURL(), c.config.StashAPIKey(), logger)
}

func settingsFrom(rules *config.Review) review.Settings {
	return review.Settings{
		Timeline:    rules.TimelineConfig(),
		Derivations: rules.DerivationGraph(),
	}
}

// newService wires a review service over the local cache and Stash.
func (c *commandContext) newService(logger *slog.Logger, st *store) (*review.Service, error) {
	rules, err := c.loadReview(logger)
	if err != nil {
		return nil, err
	}
	svc := review.NewService(st.repo, c.stashClient(logger), settingsFrom(rules), logger)
	svc.SetSyncConcurrency(c.config.SyncConcurrency())
	return svc, nil
}
