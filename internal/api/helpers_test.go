package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/markerlane/markerlane-agent/internal/db"
	"github.com/markerlane/markerlane-agent/internal/review"
	"github.com/markerlane/markerlane-agent/internal/stash"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

const testToken = "test-token"

// memStash serves scene "s1" with a Kiss marker, an unprocessed Hug marker,
// a rejected Hug marker and one shot boundary.
type memStash struct {
	mu      sync.Mutex
	tags    []stash.Tag
	markers map[string]*stash.Marker
	nextID  int
	failAll error
}

func newMemStash() *memStash {
	f := &memStash{
		tags: []stash.Tag{
			{ID: "1", Name: "Kiss"},
			{ID: "2", Name: "Hug"},
			{ID: "10", Name: "Confirmed"},
			{ID: "11", Name: "Rejected"},
			{ID: "12", Name: "Manual"},
			{ID: "13", Name: "Shot Boundary"},
			{ID: "14", Name: "AI_Reviewed"},
		},
		markers: make(map[string]*stash.Marker),
		nextID:  100,
	}
	f.put(&stash.MarkerInput{ID: "m1", SceneID: "s1", PrimaryTagID: "1", Seconds: 10, EndSeconds: seconds(20)})
	f.put(&stash.MarkerInput{ID: "m2", SceneID: "s1", PrimaryTagID: "2", Seconds: 12, EndSeconds: seconds(18)})
	f.put(&stash.MarkerInput{ID: "m3", SceneID: "s1", PrimaryTagID: "2", Seconds: 30, EndSeconds: seconds(35), TagIDs: []string{"11"}})
	f.put(&stash.MarkerInput{ID: "m4", SceneID: "s1", PrimaryTagID: "13", Seconds: 25})
	return f
}

func seconds(v float64) *float64 { return &v }

func (f *memStash) ref(id string) stash.TagRef {
	for _, t := range f.tags {
		if t.ID == id {
			return stash.TagRef{ID: id, Name: t.Name}
		}
	}
	return stash.TagRef{ID: id}
}

func (f *memStash) put(in *stash.MarkerInput) *stash.Marker {
	m := &stash.Marker{
		ID:         in.ID,
		Title:      in.Title,
		Seconds:    in.Seconds,
		EndSeconds: in.EndSeconds,
		PrimaryTag: f.ref(in.PrimaryTagID),
		Tags:       []stash.TagRef{},
		Scene:      stash.SceneRef{ID: in.SceneID},
	}
	for _, id := range in.TagIDs {
		m.Tags = append(m.Tags, f.ref(id))
	}
	f.markers[m.ID] = m
	c := *m
	return &c
}

func (f *memStash) FindScene(ctx context.Context, id string) (*stash.Scene, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	if id != "s1" {
		return nil, nil
	}
	return &stash.Scene{
		ID:    "s1",
		Title: "Scene One",
		Files: []stash.SceneFile{{Path: "/media/one.mp4", Duration: 60, FrameRate: 25}},
	}, nil
}

func (f *memStash) FindSceneMarkers(ctx context.Context, sceneID string) ([]stash.Marker, error) {
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

func (f *memStash) AllTags(ctx context.Context) ([]stash.Tag, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	return f.tags, nil
}

func (f *memStash) CreateMarker(ctx context.Context, in stash.MarkerInput) (*stash.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	in.ID = fmt.Sprintf("m%d", f.nextID)
	return f.put(&in), nil
}

func (f *memStash) UpdateMarker(ctx context.Context, in stash.MarkerInput) (*stash.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.markers[in.ID]; !ok {
		return nil, &stash.GraphQLError{Messages: []string{"marker not found"}}
	}
	return f.put(&in), nil
}

func (f *memStash) DestroyMarker(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.markers, id)
	return nil
}

func (f *memStash) AddSceneTag(ctx context.Context, sceneID, tagID string) error {
	return nil
}

func testSettings() review.Settings {
	return review.Settings{
		Timeline: timeline.Config{
			ConfirmedTagID:    "10",
			RejectedTagID:     "11",
			ManualTagID:       "12",
			ShotBoundaryTagID: "13",
			AIReviewedTagID:   "14",
		},
		Derivations: timeline.NewDerivationGraph(0),
	}
}

type testEnv struct {
	cfg    ServerConfig
	router http.Handler
	svc    *review.Service
	repo   review.Repository
	remote *memStash
}

// newTestEnv builds a router over a real service and SQLite cache with
// scene s1 already synced.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := review.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	remote := newMemStash()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := review.NewService(repo, remote, testSettings(), logger)
	if _, err := svc.SyncScene(context.Background(), "s1"); err != nil {
		t.Fatalf("SyncScene() error = %v", err)
	}

	cfg := ServerConfig{
		Version:   "test",
		Service:   svc,
		Tokens:    repo,
		Logger:    logger,
		StartTime: time.Now(),
		DeviceID:  "test-device",
	}
	return &testEnv{cfg: cfg, router: NewRouter(cfg), svc: svc, repo: repo, remote: remote}
}

// do sends an authenticated loopback request through the router.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal error: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %v (body=%q)", err, rr.Body.String())
	}
	return body
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response body: %v (body=%q)", err, rr.Body.String())
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body=%s)", rr.Code, want, rr.Body.String())
	}
}

func expectCode(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	if got, _ := decodeJSONBody(t, rr)["code"].(string); got != want {
		t.Errorf("error code = %q, want %q", got, want)
	}
}
