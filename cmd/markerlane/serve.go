package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/markerlane/markerlane-agent/internal/api"
	"github.com/markerlane/markerlane-agent/internal/config"
	"github.com/markerlane/markerlane-agent/internal/logging"
	"github.com/markerlane/markerlane-agent/internal/review"
	"github.com/markerlane/markerlane-agent/internal/stash"
	"github.com/markerlane/markerlane-agent/internal/ui"
	"github.com/markerlane/markerlane-agent/internal/watcher"
)

const deviceIDKey = "device_id"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the review agent: HTTP API, job runner and tray",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, headless || ctx.config.Headless())
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "Run without the system tray")
	return cmd
}

func runServe(parent context.Context, c *commandContext, headless bool) error {
	startTime := time.Now()
	cfg := c.config

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.New("another markerlane agent is already running")
	}
	defer lock.Unlock()

	logger := logging.NewLogger(c.logLevel())
	logger.Info("starting markerlane agent", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()), "stash_url", cfg.StashURL())

	st, err := c.openStore(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	deviceID, err := ensureDeviceID(st.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := ensureAuthToken(st.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	printBanner(cfg.Port(), authToken, deviceID)

	svc, err := c.newService(logger, st)
	if err != nil {
		return err
	}

	client := c.stashClient(logger)
	probe := stash.NewCachedProbe(client, logger)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
	if h := probe.Refresh(initCtx); h.Reachable {
		logger.Info("stash reachable", "version", h.Version)
	} else {
		logger.Warn("stash unreachable, jobs will wait", "error", h.Error)
	}
	initCancel()

	runner := review.NewRunner(svc, st.repo, probe, logger)
	go runner.Start(ctx)

	reload := func() error {
		rules, err := c.loadReview(logger)
		if err != nil {
			return err
		}
		svc.SetSettings(settingsFrom(rules))
		logger.Info("review rules reloaded", "path", logging.SanitizePath(c.reviewPath()))
		return nil
	}

	rulesWatcher, err := watcher.New(c.reviewPath(),
		watcher.WithLogger(logger),
		watcher.WithOnChange(func(path string, ev watcher.EventType) {
			if ev == watcher.EventDelete {
				return
			}
			if err := reload(); err != nil {
				logger.Error("invalid review config, keeping previous rules", "path", logging.SanitizePath(path), "error", err)
			}
		}),
		watcher.WithOnError(func(err error) {
			logger.Warn("review config watcher", "error", err)
		}),
	)
	if err == nil {
		err = rulesWatcher.Start(ctx)
	}
	if err != nil {
		logger.Warn("review config hot reload disabled", "error", err)
	} else {
		defer rulesWatcher.Stop()
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Service:        svc,
		Tokens:         st.repo,
		Runner:         runner,
		Probe:          probe,
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if headless {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Pending:  svc,
			Runner:   runner,
			Health:   probe,
			Logger:   logger,
			OnReload: reload,
			OnQuit:   cancel,
		})
		go tray.Run(ctx)
	}

	<-ctx.Done()

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func printBanner(port int, authToken, deviceID string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  MARKERLANE AGENT v%-22s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", port)
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// settingsStore is the agent-settings part of the repository.
type settingsStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

func ensureDeviceID(repo settingsStore) (string, error) {
	return ensureRandomSetting(repo, deviceIDKey, 16)
}

func ensureAuthToken(repo settingsStore) (string, error) {
	return ensureRandomSetting(repo, api.AuthTokenKey, 32)
}

// ensureRandomSetting returns the stored value of key, generating and
// storing n random bytes hex-encoded on first use.
func ensureRandomSetting(repo settingsStore, key string, n int) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	value := hex.EncodeToString(buf)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
