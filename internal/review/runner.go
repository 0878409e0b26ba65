package review

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/markerlane/markerlane-agent/internal/logging"
	"github.com/markerlane/markerlane-agent/internal/stash"
)

// maxAttempts bounds how often a job failing with a retryable Stash error
// is put back to pending.
const maxAttempts = 3

// HealthChecker reports whether Stash can currently be reached.
type HealthChecker interface {
	Get(ctx context.Context) stash.Health
}

// Runner executes queued sync and completion jobs one at a time.
type Runner struct {
	service      *Service
	repo         Repository
	health       HealthChecker
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
	attempts     map[string]int
}

func NewRunner(service *Service, repo Repository, health HealthChecker, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		service:      service,
		repo:         repo,
		health:       health,
		logger:       logging.WithComponent(logger, "runner"),
		pollInterval: 5 * time.Second,
		attempts:     make(map[string]int),
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

// IsRunning reports whether Start is polling for jobs.
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// processNextJob runs the oldest pending job. It reports whether a job was
// picked up.
func (r *Runner) processNextJob(ctx context.Context) bool {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	if r.health != nil {
		if h := r.health.Get(ctx); !h.Reachable {
			r.logger.Warn("stash unreachable, jobs deferred", "pending", len(jobs), "error", h.Error)
			return false
		}
	}

	job := jobs[0]
	log := logging.WithJobID(r.logger, job.ID)
	log.Info("processing job", "type", job.Type, "scene_id", job.SceneID)

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	switch job.Type {
	case JobTypeSyncScene:
		_, err = r.service.SyncScene(ctx, job.SceneID)
	case JobTypeCompleteScene:
		_, err = r.service.CompleteScene(ctx, job.SceneID)
	default:
		log.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
		return true
	}

	if err == nil {
		delete(r.attempts, job.ID)
		r.repo.UpdateJobProgress(ctx, job.ID, 100)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
		log.Info("job completed")
		return true
	}

	r.attempts[job.ID]++
	if retryable(err) && r.attempts[job.ID] < maxAttempts {
		log.Warn("job failed, will retry", "attempt", r.attempts[job.ID], "error", err)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusPending, err.Error())
		return true
	}

	delete(r.attempts, job.ID)
	log.Error("job failed", "error", err)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
	return true
}

func retryable(err error) bool {
	var r interface{ IsRetryable() bool }
	return errors.As(err, &r) && r.IsRetryable()
}

// ActiveJobCount returns how many of the recent jobs are pending or running.
func (r *Runner) ActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusRunning || j.Status == JobStatusPending {
			count++
		}
	}
	return count
}
