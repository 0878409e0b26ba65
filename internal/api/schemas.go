package api

import (
	"time"

	"github.com/markerlane/markerlane-agent/internal/review"
	"github.com/markerlane/markerlane-agent/internal/stash"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State         string               `json:"state"`
	LastError     string               `json:"last_error,omitempty"`
	ScenesCount   int                  `json:"scenes_count"`
	PendingReview int                  `json:"pending_review"`
	RunnerActive  bool                 `json:"runner_active"`
	JobsRunning   int                  `json:"jobs_running"`
	JobsPending   int                  `json:"jobs_pending"`
	ActiveJob     *JobResponse         `json:"active_job,omitempty"`
	Stash         *StashStatusResponse `json:"stash,omitempty"`
}

type StashStatusResponse struct {
	Reachable   bool   `json:"reachable"`
	Version     string `json:"version,omitempty"`
	Error       string `json:"error,omitempty"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type SceneResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Path        string  `json:"path"`
	Duration    float64 `json:"duration"`
	FrameRate   float64 `json:"frame_rate"`
	Reviewed    bool    `json:"reviewed"`
	MarkerCount int     `json:"marker_count"`
	SyncedAt    string  `json:"synced_at"`
}

type ScenesResponse struct {
	Scenes []SceneResponse `json:"scenes"`
}

type TagsResponse struct {
	Tags []*review.Tag `json:"tags"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	SceneID   string `json:"scene_id,omitempty"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type QueuedResponse struct {
	JobID string `json:"job_id"`
}

// TagRef is a tag without its ancestors.
type TagRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MarkerView is a marker as drawn on the timeline.
type MarkerView struct {
	ID         string          `json:"id"`
	Title      string          `json:"title,omitempty"`
	PrimaryTag TagRef          `json:"primary_tag"`
	Tags       []TagRef        `json:"tags"`
	Start      float64         `json:"start"`
	End        *float64        `json:"end,omitempty"`
	Status     timeline.Status `json:"status"`
	Track      int             `json:"track"`
	Position   int             `json:"position"`
}

type LaneResponse struct {
	Name       string          `json:"name"`
	Group      *timeline.Group `json:"group,omitempty"`
	IsRejected bool            `json:"is_rejected"`
	TrackCount int             `json:"track_count"`
	Markers    []MarkerView    `json:"markers"`
}

type TimelineResponse struct {
	Scene          SceneResponse  `json:"scene"`
	Lanes          []LaneResponse `json:"lanes"`
	ShotBoundaries []MarkerView   `json:"shot_boundaries"`
	TrackCount     int            `json:"track_count"`
	SelectedID     string         `json:"selected_id,omitempty"`
}

type NavigateRequest struct {
	Move        string   `json:"move"`
	SelectedID  string   `json:"selected_id"`
	CurrentTime float64  `json:"current_time"`
	Status      []string `json:"status,omitempty"`
	Query       string   `json:"q,omitempty"`
}

type SplitRequest struct {
	At *float64 `json:"at"`
}

type SplitResponse struct {
	First  *review.Marker `json:"first"`
	Second *review.Marker `json:"second"`
}

type EventResponse struct {
	ID        int64  `json:"id"`
	MarkerID  string `json:"marker_id,omitempty"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

type HistoryResponse struct {
	SceneID string          `json:"scene_id"`
	Events  []EventResponse `json:"events"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SceneToResponse(s *review.Scene) SceneResponse {
	return SceneResponse{
		ID:          s.ID,
		Title:       s.Title,
		Path:        s.Path,
		Duration:    s.Duration,
		FrameRate:   s.FrameRate,
		Reviewed:    s.Reviewed,
		MarkerCount: s.MarkerCount,
		SyncedAt:    s.SyncedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *review.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		SceneID:   j.SceneID,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

func EventToResponse(e *review.Event) EventResponse {
	return EventResponse{
		ID:        e.ID,
		MarkerID:  e.MarkerID,
		Action:    e.Action,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

func HealthToResponse(h stash.Health) *StashStatusResponse {
	resp := &StashStatusResponse{Reachable: h.Reachable, Version: h.Version, Error: h.Error}
	if !h.ProbedAt.IsZero() {
		resp.LastProbeAt = h.ProbedAt.Format(time.RFC3339)
	}
	return resp
}

func markerToView(m timeline.Marker, p timeline.Placement) MarkerView {
	v := MarkerView{
		ID:         m.ID,
		Title:      m.Title,
		PrimaryTag: TagRef{ID: m.PrimaryTag.ID, Name: m.PrimaryTag.Name},
		Tags:       make([]TagRef, 0, len(m.Tags)),
		Start:      m.Start,
		End:        m.End,
		Status:     p.Status,
		Track:      p.TrackIndex,
		Position:   p.Position,
	}
	for _, t := range m.Tags {
		v.Tags = append(v.Tags, TagRef{ID: t.ID, Name: t.Name})
	}
	return v
}

// TimelineToResponse flattens a layout for the review UI. selected is
// reconciled against the layout at time t.
func TimelineToResponse(tl *review.SceneTimeline, selected string, t float64) TimelineResponse {
	l := tl.Layout
	resp := TimelineResponse{
		Scene:          SceneToResponse(tl.Scene),
		Lanes:          make([]LaneResponse, len(l.Lanes)),
		ShotBoundaries: make([]MarkerView, 0, len(l.ShotBoundaries)),
		TrackCount:     l.TrackCount(),
		SelectedID:     timeline.Reconcile(l, selected, t),
	}
	for i, lane := range l.Lanes {
		lr := LaneResponse{
			Name:       lane.Name,
			Group:      lane.Group,
			IsRejected: lane.IsRejected,
			TrackCount: lane.TrackCount,
			Markers:    make([]MarkerView, 0, len(lane.Markers)),
		}
		for _, m := range lane.Markers {
			lr.Markers = append(lr.Markers, markerToView(m, l.Placements[m.ID]))
		}
		resp.Lanes[i] = lr
	}
	for _, m := range l.ShotBoundaries {
		resp.ShotBoundaries = append(resp.ShotBoundaries, markerToView(m, timeline.Placement{Marker: m, TrackIndex: -1, Position: -1}))
	}
	return resp
}
