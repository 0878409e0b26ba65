package review

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/markerlane/markerlane-agent/internal/db"
	"github.com/markerlane/markerlane-agent/internal/stash"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

// Tag ids used across the tests.
const (
	tagKiss          = "1"
	tagKissConfirmed = "2"
	tagKissRejected  = "3"
	tagConfirmed     = "10"
	tagRejected      = "11"
	tagManual        = "12"
	tagShot          = "13"
	tagAIReviewed    = "14"
	tagAIKiss        = "20"
	tagIntimacy      = "40"
	tagHug           = "41"
)

func testTags() []stash.Tag {
	return []stash.Tag{
		{ID: tagKiss, Name: "Kiss", Parents: []stash.TagRef{{ID: tagIntimacy, Name: "Intimacy"}}},
		{ID: tagKissConfirmed, Name: "Kiss_CONFIRMED"},
		{ID: tagKissRejected, Name: "Kiss_REJECTED"},
		{ID: tagConfirmed, Name: "Confirmed"},
		{ID: tagRejected, Name: "Rejected"},
		{ID: tagManual, Name: "Manual"},
		{ID: tagShot, Name: "Shot Boundary"},
		{ID: tagAIReviewed, Name: "AI_Reviewed"},
		{ID: tagAIKiss, Name: "AI Kiss"},
		{ID: tagIntimacy, Name: "Intimacy"},
		{ID: tagHug, Name: "Hug"},
	}
}

func testSettings() Settings {
	graph := timeline.NewDerivationGraph(0)
	graph.AddEdge(tagKiss, tagIntimacy)
	return Settings{
		Timeline: timeline.Config{
			ConfirmedTagID:    tagConfirmed,
			RejectedTagID:     tagRejected,
			ManualTagID:       tagManual,
			ShotBoundaryTagID: tagShot,
			AIReviewedTagID:   tagAIReviewed,
			CorrespondingTags: map[string]string{"AI Kiss": "Kiss"},
		},
		Derivations: graph,
	}
}

func end(v float64) *float64 { return &v }

// fakeStash is an in-memory Stash holding one scene "s1" with a confirmed-
// able Kiss marker, an AI Kiss marker, a shot boundary and a rejected Hug.
type fakeStash struct {
	mu        sync.Mutex
	scenes    map[string]*stash.Scene
	markers   map[string]*stash.Marker
	tags      map[string]stash.Tag
	sceneTags map[string][]string
	nextID    int

	findErr   error
	createErr error
	updateErr error
}

func newFakeStash() *fakeStash {
	f := &fakeStash{
		scenes:    make(map[string]*stash.Scene),
		markers:   make(map[string]*stash.Marker),
		tags:      make(map[string]stash.Tag),
		sceneTags: make(map[string][]string),
		nextID:    100,
	}
	for _, t := range testTags() {
		f.tags[t.ID] = t
	}
	f.scenes["s1"] = &stash.Scene{
		ID:    "s1",
		Title: "Scene One",
		Files: []stash.SceneFile{{Path: "/media/one.mp4", Duration: 120, FrameRate: 30}},
	}
	f.put("m1", "s1", tagKiss, 10, end(20))
	f.put("m2", "s1", tagAIKiss, 15, end(25))
	f.put("m3", "s1", tagShot, 0, nil)
	f.put("m4", "s1", tagHug, 30, end(40), tagRejected)
	return f
}

func (f *fakeStash) ref(id string) stash.TagRef {
	return stash.TagRef{ID: id, Name: f.tags[id].Name}
}

func (f *fakeStash) put(id, sceneID, primary string, start float64, stop *float64, tagIDs ...string) {
	m := &stash.Marker{
		ID:         id,
		Seconds:    start,
		EndSeconds: stop,
		PrimaryTag: f.ref(primary),
		Tags:       []stash.TagRef{},
		Scene:      stash.SceneRef{ID: sceneID},
	}
	for _, t := range tagIDs {
		m.Tags = append(m.Tags, f.ref(t))
	}
	f.markers[id] = m
}

func (f *fakeStash) FindScene(ctx context.Context, id string) (*stash.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.scenes[id]
	if !ok {
		return nil, nil
	}
	c := *s
	for _, t := range f.sceneTags[id] {
		c.Tags = append(c.Tags, f.ref(t))
	}
	return &c, nil
}

func (f *fakeStash) FindSceneMarkers(ctx context.Context, sceneID string) ([]stash.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []stash.Marker
	for _, m := range f.markers {
		if m.Scene.ID == sceneID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStash) AllTags(ctx context.Context) ([]stash.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stash.Tag, 0, len(f.tags))
	for _, t := range f.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStash) CreateMarker(ctx context.Context, in stash.MarkerInput) (*stash.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("m%d", f.nextID)
	f.put(id, in.SceneID, in.PrimaryTagID, in.Seconds, in.EndSeconds, in.TagIDs...)
	f.markers[id].Title = in.Title
	c := *f.markers[id]
	return &c, nil
}

func (f *fakeStash) UpdateMarker(ctx context.Context, in stash.MarkerInput) (*stash.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if _, ok := f.markers[in.ID]; !ok {
		return nil, fmt.Errorf("marker %s does not exist", in.ID)
	}
	f.put(in.ID, in.SceneID, in.PrimaryTagID, in.Seconds, in.EndSeconds, in.TagIDs...)
	f.markers[in.ID].Title = in.Title
	c := *f.markers[in.ID]
	return &c, nil
}

func (f *fakeStash) DestroyMarker(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.markers[id]; !ok {
		return fmt.Errorf("marker %s does not exist", id)
	}
	delete(f.markers, id)
	return nil
}

func (f *fakeStash) AddSceneTag(ctx context.Context, sceneID, tagID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sceneTags[sceneID] = append(f.sceneTags[sceneID], tagID)
	return nil
}

func (f *fakeStash) marker(id string) (stash.Marker, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markers[id]
	if !ok {
		return stash.Marker{}, false
	}
	return *m, true
}

func (f *fakeStash) sceneMarkerCount(sceneID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.markers {
		if m.Scene.ID == sceneID {
			n++
		}
	}
	return n
}

func setupRepo(t *testing.T) Repository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

// setupService returns a service whose cache already holds scene s1.
func setupService(t *testing.T) (*Service, *fakeStash, Repository) {
	t.Helper()
	repo := setupRepo(t)
	remote := newFakeStash()
	svc := NewService(repo, remote, testSettings(), nil)

	_, err := svc.SyncScene(context.Background(), "s1")
	require.NoError(t, err)
	return svc, remote, repo
}
