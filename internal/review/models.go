package review

import (
	"time"

	"github.com/google/uuid"
)

// Scene is the cached copy of a Stash scene.
type Scene struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Path        string    `json:"path"`
	Duration    float64   `json:"duration"`
	FrameRate   float64   `json:"frame_rate"`
	Reviewed    bool      `json:"reviewed"`
	MarkerCount int       `json:"marker_count"`
	SyncedAt    time.Time `json:"synced_at"`
}

type Tag struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ParentIDs []string `json:"parent_ids,omitempty"`
}

// Marker is the cached copy of a Stash scene marker. TagIDs are the
// secondary tags in Stash order.
type Marker struct {
	ID           string    `json:"id"`
	SceneID      string    `json:"scene_id"`
	Title        string    `json:"title"`
	PrimaryTagID string    `json:"primary_tag_id"`
	Seconds      float64   `json:"seconds"`
	EndSeconds   *float64  `json:"end_seconds,omitempty"`
	TagIDs       []string  `json:"tag_ids"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	JobTypeSyncScene     = "sync_scene"
	JobTypeCompleteScene = "complete_scene"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	SceneID   string    `json:"scene_id,omitempty"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review event actions.
const (
	ActionSync      = "sync"
	ActionConfirm   = "confirm"
	ActionReject    = "reject"
	ActionReset     = "reset"
	ActionUpdate    = "update"
	ActionSplit     = "split"
	ActionDuplicate = "duplicate"
	ActionCreate    = "create"
	ActionDelete    = "delete"
	ActionDerive    = "derive"
	ActionComplete  = "complete"
)

// Event is one entry of a scene's review history.
type Event struct {
	ID        int64     `json:"id"`
	SceneID   string    `json:"scene_id"`
	MarkerID  string    `json:"marker_id,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}
