package review

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markerlane/markerlane-agent/internal/timeline"
)

func TestService_SyncScene(t *testing.T) {
	svc, _, repo := setupService(t)
	ctx := context.Background()

	scene, err := svc.GetScene(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, scene)
	assert.Equal(t, "Scene One", scene.Title)
	assert.Equal(t, "/media/one.mp4", scene.Path)
	assert.Equal(t, 30.0, scene.FrameRate)
	assert.Equal(t, 4, scene.MarkerCount)
	assert.False(t, scene.Reviewed)

	tags, err := repo.ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, len(testTags()))

	events, err := svc.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, ActionSync, events[0].Action)
}

func TestService_SyncScene_ReplacesMarkers(t *testing.T) {
	svc, remote, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, remote.DestroyMarker(ctx, "m4"))
	scene, err := svc.SyncScene(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, scene.MarkerCount)
}

func TestService_SyncScene_NotFound(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.SyncScene(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSceneNotFound)
}

func TestService_SyncScene_ReviewedTag(t *testing.T) {
	svc, remote, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, remote.AddSceneTag(ctx, "s1", tagAIReviewed))
	scene, err := svc.SyncScene(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, scene.Reviewed)
}

func TestService_SyncScenes_PartialFailure(t *testing.T) {
	svc, _, _ := setupService(t)
	svc.SetSyncConcurrency(2)

	results, err := svc.SyncScenes(context.Background(), []string{"s1", "missing"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "s1", results[0].SceneID)
	assert.Equal(t, 4, results[0].Markers)
	assert.Empty(t, results[0].Error)

	assert.Equal(t, "missing", results[1].SceneID)
	assert.Contains(t, results[1].Error, "scene not found")
}

func TestService_SetSyncConcurrency(t *testing.T) {
	svc, _, _ := setupService(t)
	assert.Equal(t, defaultSyncConcurrency, svc.SyncConcurrency())

	svc.SetSyncConcurrency(0)
	assert.Equal(t, 1, svc.SyncConcurrency())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 8; i++ {
			svc.SetSyncConcurrency(i)
		}
	}()
	results, err := svc.SyncScenes(context.Background(), []string{"s1"})
	wg.Wait()

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, 8, svc.SyncConcurrency())
}

func TestService_Timeline(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	tl, err := svc.Timeline(ctx, "s1", timeline.Filter{})
	require.NoError(t, err)

	var names []string
	for _, l := range tl.Layout.Lanes {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"Hug", "Kiss"}, names, "AI Kiss folds into its canonical lane")
	assert.True(t, tl.Layout.Lanes[0].IsRejected)
	assert.Equal(t, 2, tl.Layout.Lanes[1].TrackCount)
	require.Len(t, tl.Layout.ShotBoundaries, 1)
	assert.Equal(t, "m3", tl.Layout.ShotBoundaries[0].ID)

	filtered, err := svc.Timeline(ctx, "s1", timeline.Filter{Statuses: []timeline.Status{timeline.StatusUnprocessed}})
	require.NoError(t, err)
	require.Len(t, filtered.Layout.Lanes, 1)
	assert.Equal(t, "Kiss", filtered.Layout.Lanes[0].Name)
	assert.Len(t, filtered.Layout.ShotBoundaries, 1, "shot boundaries survive filtering")
}

func TestService_Timeline_UnknownScene(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Timeline(context.Background(), "missing", timeline.Filter{})
	assert.True(t, errors.Is(err, ErrSceneNotFound))
}

func TestService_Navigate(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	res, err := svc.Navigate(ctx, "s1", timeline.Filter{}, timeline.Request{Move: timeline.MoveRight, SelectedID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, timeline.Result{SelectedID: "m2", Changed: true}, res)

	res, err = svc.Navigate(ctx, "s1", timeline.Filter{}, timeline.Request{Move: timeline.MoveNextShot, CurrentTime: -1})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	require.NotNil(t, res.SeekTo)
	assert.Equal(t, 0.0, *res.SeekTo)
}

func TestService_SetSettings(t *testing.T) {
	svc, _, _ := setupService(t)

	next := testSettings()
	next.Timeline.CorrespondingTags = nil
	svc.SetSettings(next)

	tl, err := svc.Timeline(context.Background(), "s1", timeline.Filter{})
	require.NoError(t, err)
	assert.Len(t, tl.Layout.Lanes, 3, "without the mapping AI Kiss gets its own lane")
}

func TestService_QueueComplete_RequiresCachedScene(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.QueueComplete(ctx, "missing")
	assert.ErrorIs(t, err, ErrSceneNotFound)

	job, err := svc.QueueComplete(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, JobTypeCompleteScene, job.Type)
	assert.Equal(t, JobStatusPending, job.Status)
}

func TestTagIndex_CyclicParents(t *testing.T) {
	idx := newTagIndex([]*Tag{
		{ID: "a", Name: "A", ParentIDs: []string{"b"}},
		{ID: "b", Name: "B", ParentIDs: []string{"a"}},
	})

	tag := idx.resolve("a")
	depth := 0
	for len(tag.Parents) > 0 {
		tag = tag.Parents[0]
		depth++
	}
	assert.Equal(t, maxTagDepth, depth)
}
