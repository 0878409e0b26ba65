package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/markerlane/markerlane-agent/internal/stash"
)

const refreshInterval = 15 * time.Second

// PendingCounter reports how many cached scenes still await review.
type PendingCounter interface {
	PendingReviewCount(ctx context.Context) (int, error)
}

// Pausable is the job runner as the tray drives it.
type Pausable interface {
	Pause()
	Resume()
	IsPaused() bool
	ActiveJobCount(ctx context.Context) int
}

// HealthSource reports Stash reachability.
type HealthSource interface {
	Get(ctx context.Context) stash.Health
}

type Tray struct {
	pending PendingCounter
	runner  Pausable
	health  HealthSource
	logger  *slog.Logger

	statusItem  *systray.MenuItem
	pendingItem *systray.MenuItem
	stashItem   *systray.MenuItem
	pauseItem   *systray.MenuItem

	mu         sync.Mutex
	activeJobs int

	onReload func() error
	onQuit   func()
}

type TrayConfig struct {
	Pending  PendingCounter
	Runner   Pausable
	Health   HealthSource
	Logger   *slog.Logger
	OnReload func() error
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		pending:  cfg.Pending,
		runner:   cfg.Runner,
		health:   cfg.Health,
		logger:   cfg.Logger,
		onReload: cfg.OnReload,
		onQuit:   cfg.OnQuit,
	}
}

// Run blocks on the platform event loop until Quit.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Markerlane")
	systray.SetTooltip("Markerlane marker review agent")

	t.statusItem = systray.AddMenuItem(statusLabel(false, 0), "Current agent status")
	t.statusItem.Disable()

	t.pendingItem = systray.AddMenuItem(pendingLabel(0), "Scenes awaiting review")
	t.pendingItem.Disable()

	t.stashItem = systray.AddMenuItem(stashLabel(stash.Health{}), "Stash connection")
	t.stashItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause background jobs")
	reloadItem := systray.AddMenuItem("Reload Review Rules", "Re-read review.toml")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Markerlane")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		t.refresh(ctx)
		for {
			select {
			case <-ticker.C:
				t.refresh(ctx)
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-reloadItem.ClickedCh:
				t.handleReload()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-ctx.Done():
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refresh(ctx context.Context) {
	var (
		count  int
		err    error
		h      stash.Health
		jobs   int
		paused bool
	)
	if t.pending != nil {
		count, err = t.pending.PendingReviewCount(ctx)
		if err != nil {
			t.logger.Warn("tray: pending count failed", "error", err)
		}
	}
	if t.health != nil {
		h = t.health.Get(ctx)
	}
	if t.runner != nil {
		jobs = t.runner.ActiveJobCount(ctx)
		paused = t.runner.IsPaused()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeJobs = jobs
	t.statusItem.SetTitle(statusLabel(paused, jobs))
	t.pendingItem.SetTitle(pendingLabel(count))
	t.stashItem.SetTitle(stashLabel(h))
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
	} else {
		t.runner.Pause()
	}
	paused := t.runner.IsPaused()
	t.pauseItem.SetTitle(pauseLabel(paused))
	t.statusItem.SetTitle(statusLabel(paused, t.activeJobs))
}

func (t *Tray) handleReload() {
	if t.onReload != nil {
		if err := t.onReload(); err != nil {
			t.logger.Error("failed to reload review rules", "error", err)
		}
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

func statusLabel(paused bool, jobs int) string {
	switch {
	case paused:
		return "Status: Paused"
	case jobs == 1:
		return "Status: Working on 1 job"
	case jobs > 1:
		return fmt.Sprintf("Status: Working on %d jobs", jobs)
	}
	return "Status: Running"
}

func pauseLabel(paused bool) string {
	if paused {
		return "Resume"
	}
	return "Pause"
}

func pendingLabel(n int) string {
	switch n {
	case 0:
		return "No scenes awaiting review"
	case 1:
		return "1 scene awaiting review"
	}
	return fmt.Sprintf("%d scenes awaiting review", n)
}

func stashLabel(h stash.Health) string {
	switch {
	case h.ProbedAt.IsZero():
		return "Stash: checking..."
	case !h.Reachable:
		return "Stash: unreachable"
	case h.Version != "":
		return "Stash: connected (" + h.Version + ")"
	}
	return "Stash: connected"
}
