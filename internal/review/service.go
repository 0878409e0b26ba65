// Package review keeps a local cache of Stash scenes and markers and runs
// the review workflow over it: sync, swimlane layout, status actions, edits
// and scene completion. Every mutation is written to Stash first and cached
// only after Stash accepted it.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markerlane/markerlane-agent/internal/logging"
	"github.com/markerlane/markerlane-agent/internal/stash"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

// Stash is the subset of the Stash API the review workflow needs.
type Stash interface {
	FindScene(ctx context.Context, id string) (*stash.Scene, error)
	FindSceneMarkers(ctx context.Context, sceneID string) ([]stash.Marker, error)
	AllTags(ctx context.Context) ([]stash.Tag, error)
	CreateMarker(ctx context.Context, in stash.MarkerInput) (*stash.Marker, error)
	UpdateMarker(ctx context.Context, in stash.MarkerInput) (*stash.Marker, error)
	DestroyMarker(ctx context.Context, id string) error
	AddSceneTag(ctx context.Context, sceneID, tagID string) error
}

// Settings is the review configuration in effect. It is replaced as a whole
// when review.toml changes.
type Settings struct {
	Timeline    timeline.Config
	Derivations *timeline.DerivationGraph
}

const defaultSyncConcurrency = 4

type Service struct {
	repo      Repository
	remote    Stash
	logger    *slog.Logger
	settings  atomic.Pointer[Settings]
	syncLimit atomic.Int32
}

func NewService(repo Repository, remote Stash, settings Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Service{
		repo:      repo,
		remote:    remote,
		logger:    logging.WithComponent(logger, "review"),
	}
	s.settings.Store(&settings)
	s.syncLimit.Store(defaultSyncConcurrency)
	return s
}

func (s *Service) Settings() Settings {
	return *s.settings.Load()
}

func (s *Service) SetSettings(settings Settings) {
	s.settings.Store(&settings)
	s.logger.Info("review settings updated", "derivations", settings.Derivations.Len())
}

// SetSyncConcurrency bounds how many scenes SyncScenes fetches at once.
func (s *Service) SetSyncConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.syncLimit.Store(int32(n))
}

// SyncConcurrency returns the current SyncScenes limit.
func (s *Service) SyncConcurrency() int {
	return int(s.syncLimit.Load())
}

func (s *Service) GetScene(ctx context.Context, id string) (*Scene, error) {
	return s.repo.GetScene(ctx, id)
}

func (s *Service) ListScenes(ctx context.Context) ([]*Scene, error) {
	return s.repo.ListScenes(ctx)
}

func (s *Service) ListTags(ctx context.Context) ([]*Tag, error) {
	return s.repo.ListTags(ctx)
}

func (s *Service) ListMarkers(ctx context.Context, sceneID string) ([]*Marker, error) {
	return s.repo.ListMarkers(ctx, sceneID)
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

// PendingReviewCount returns how many cached scenes are not yet reviewed.
func (s *Service) PendingReviewCount(ctx context.Context) (int, error) {
	return s.repo.CountUnreviewedScenes(ctx)
}

// SyncTags replaces the tag cache with the full Stash tag list.
func (s *Service) SyncTags(ctx context.Context) error {
	remote, err := s.remote.AllTags(ctx)
	if err != nil {
		return fmt.Errorf("fetch tags: %w", err)
	}
	tags := make([]*Tag, 0, len(remote))
	for _, t := range remote {
		tags = append(tags, tagFromStash(t))
	}
	if err := s.repo.ReplaceTags(ctx, tags); err != nil {
		return fmt.Errorf("store tags: %w", err)
	}
	s.logger.Info("tags synced", "count", len(tags))
	return nil
}

// SyncScene refreshes the tag cache and one scene with its markers.
func (s *Service) SyncScene(ctx context.Context, sceneID string) (*Scene, error) {
	if err := s.SyncTags(ctx); err != nil {
		return nil, err
	}
	return s.syncScene(ctx, sceneID)
}

func (s *Service) syncScene(ctx context.Context, sceneID string) (*Scene, error) {
	remote, err := s.remote.FindScene(ctx, sceneID)
	if err != nil {
		return nil, fmt.Errorf("fetch scene %s: %w", sceneID, err)
	}
	if remote == nil {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
	}

	remoteMarkers, err := s.remote.FindSceneMarkers(ctx, sceneID)
	if err != nil {
		return nil, fmt.Errorf("fetch markers of scene %s: %w", sceneID, err)
	}

	scene := sceneFromStash(remote, s.Settings().Timeline.AIReviewedTagID)
	markers := make([]*Marker, 0, len(remoteMarkers))
	for _, m := range remoteMarkers {
		markers = append(markers, markerFromStash(m, sceneID))
	}

	if err := s.repo.UpsertScene(ctx, scene); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceSceneMarkers(ctx, sceneID, markers); err != nil {
		return nil, err
	}
	s.record(ctx, sceneID, "", ActionSync, fmt.Sprintf("%d markers", len(markers)))

	logging.WithSceneID(s.logger, sceneID).Info("scene synced", "markers", len(markers))
	return s.repo.GetScene(ctx, sceneID)
}

// SyncResult reports the outcome for one scene of a batch sync.
type SyncResult struct {
	SceneID string `json:"scene_id"`
	Markers int    `json:"markers"`
	Error   string `json:"error,omitempty"`
}

// SyncScenes syncs tags once and then the given scenes concurrently. A
// failing scene does not stop the others; its error is in its result.
func (s *Service) SyncScenes(ctx context.Context, sceneIDs []string) ([]SyncResult, error) {
	if err := s.SyncTags(ctx); err != nil {
		return nil, err
	}

	results := make([]SyncResult, len(sceneIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.SyncConcurrency())

	for i, id := range sceneIDs {
		g.Go(func() error {
			results[i].SceneID = id
			scene, err := s.syncScene(gctx, id)
			if err != nil {
				results[i].Error = err.Error()
				logging.WithSceneID(s.logger, id).Warn("scene sync failed", "error", err)
				return nil
			}
			results[i].Markers = scene.MarkerCount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// QueueSync records a background sync job for the runner.
func (s *Service) QueueSync(ctx context.Context, sceneID string) (*Job, error) {
	return s.queue(ctx, JobTypeSyncScene, sceneID)
}

// QueueComplete records a background completion job. The scene must be
// cached already.
func (s *Service) QueueComplete(ctx context.Context, sceneID string) (*Job, error) {
	scene, err := s.repo.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
	}
	return s.queue(ctx, JobTypeCompleteScene, sceneID)
}

func (s *Service) queue(ctx context.Context, jobType, sceneID string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        NewID(),
		Type:      jobType,
		Status:    JobStatusPending,
		SceneID:   sceneID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	logging.WithJobID(s.logger, job.ID).Info("job queued", "type", jobType, "scene_id", sceneID)
	return job, nil
}

// SceneTimeline is a scene together with the swimlane layout of its
// markers.
type SceneTimeline struct {
	Scene  *Scene
	Layout timeline.Layout
}

// Timeline lays out the cached markers of a scene after applying filter.
func (s *Service) Timeline(ctx context.Context, sceneID string, filter timeline.Filter) (*SceneTimeline, error) {
	view, err := s.loadScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	cfg := view.settings.Timeline
	return &SceneTimeline{
		Scene:  view.scene,
		Layout: timeline.BuildLayout(filter.Apply(view.markers, cfg), cfg),
	}, nil
}

// Navigate resolves one keyboard move over the filtered layout of a scene.
func (s *Service) Navigate(ctx context.Context, sceneID string, filter timeline.Filter, req timeline.Request) (timeline.Result, error) {
	tl, err := s.Timeline(ctx, sceneID, filter)
	if err != nil {
		return timeline.Result{SelectedID: req.SelectedID}, err
	}
	return timeline.Resolve(tl.Layout, req), nil
}

// sceneView is a cached scene with its markers in both cache and timeline
// form. cached[i] and markers[i] describe the same marker.
type sceneView struct {
	scene    *Scene
	cached   []*Marker
	markers  []timeline.Marker
	settings Settings
}

func (s *Service) loadScene(ctx context.Context, sceneID string) (*sceneView, error) {
	view := &sceneView{settings: s.Settings()}

	scene, err := s.repo.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
	}
	view.scene = scene

	idx, err := s.tagIndex(ctx)
	if err != nil {
		return nil, err
	}
	view.cached, err = s.repo.ListMarkers(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	view.markers = idx.markers(view.cached)
	return view, nil
}

func (s *Service) tagIndex(ctx context.Context) (*tagIndex, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	return newTagIndex(tags), nil
}

// History returns the newest review events of a scene first.
func (s *Service) History(ctx context.Context, sceneID string, limit int) ([]*Event, error) {
	return s.repo.ListEvents(ctx, sceneID, limit)
}

func (s *Service) record(ctx context.Context, sceneID, markerID, action, detail string) {
	err := s.repo.AddEvent(ctx, &Event{SceneID: sceneID, MarkerID: markerID, Action: action, Detail: detail})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to record review event", "scene_id", sceneID, "action", action, "error", err)
	}
}
