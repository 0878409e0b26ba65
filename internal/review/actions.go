package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/markerlane/markerlane-agent/internal/timeline"
)

func (s *Service) Confirm(ctx context.Context, markerID string) (*Marker, error) {
	return s.setStatus(ctx, markerID, timeline.StatusConfirmed, ActionConfirm)
}

func (s *Service) Reject(ctx context.Context, markerID string) (*Marker, error) {
	return s.setStatus(ctx, markerID, timeline.StatusRejected, ActionReject)
}

// Reset clears the confirmed or rejected state of a marker.
func (s *Service) Reset(ctx context.Context, markerID string) (*Marker, error) {
	return s.setStatus(ctx, markerID, timeline.StatusUnprocessed, ActionReset)
}

// setStatus swaps the status tags of a marker. With suffix status enabled
// the primary tag is also moved to its _CONFIRMED or _REJECTED sibling when
// Stash has one.
func (s *Service) setStatus(ctx context.Context, markerID string, status timeline.Status, action string) (*Marker, error) {
	cfg := s.Settings().Timeline

	m, err := s.marker(ctx, markerID)
	if err != nil {
		return nil, err
	}
	if cfg.ShotBoundaryTagID != "" && m.PrimaryTagID == cfg.ShotBoundaryTagID {
		return nil, ErrShotBoundary
	}

	next := cloneMarker(m)
	next.TagIDs = withoutTags(next.TagIDs, cfg.ConfirmedTagID, cfg.RejectedTagID)
	switch status {
	case timeline.StatusConfirmed:
		next.TagIDs = withTag(next.TagIDs, cfg.ConfirmedTagID)
	case timeline.StatusRejected:
		next.TagIDs = withTag(next.TagIDs, cfg.RejectedTagID)
	}

	primary, err := s.repo.GetTag(ctx, m.PrimaryTagID)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		primary = &Tag{ID: m.PrimaryTagID}
	}
	if cfg.SuffixStatus {
		if primary, err = s.suffixSibling(ctx, primary, status); err != nil {
			return nil, err
		}
		next.PrimaryTagID = primary.ID
	}

	candidate := timeline.Marker{PrimaryTag: timeline.Tag{ID: primary.ID, Name: primary.Name}}
	for _, id := range next.TagIDs {
		candidate.Tags = append(candidate.Tags, timeline.Tag{ID: id})
	}
	if !statusReached(timeline.Classify(candidate, cfg), status) {
		return nil, fmt.Errorf("%w: cannot mark marker %s", ErrTagNotConfigured, status)
	}

	return s.push(ctx, next, action, status.String())
}

func statusReached(got, want timeline.Status) bool {
	if want == timeline.StatusUnprocessed {
		return got != timeline.StatusConfirmed && got != timeline.StatusRejected
	}
	return got == want
}

func (s *Service) suffixSibling(ctx context.Context, tag *Tag, status timeline.Status) (*Tag, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(tag.Name, timeline.ConfirmedSuffix), timeline.RejectedSuffix)
	if base == "" {
		return tag, nil
	}
	target := base
	switch status {
	case timeline.StatusConfirmed:
		target += timeline.ConfirmedSuffix
	case timeline.StatusRejected:
		target += timeline.RejectedSuffix
	}
	if target == tag.Name {
		return tag, nil
	}

	sibling, err := s.repo.GetTagByName(ctx, target)
	if err != nil {
		return nil, err
	}
	if sibling != nil {
		return sibling, nil
	}

	// No suffixed sibling: a conflicting suffix still has to go.
	if tag.Name != base {
		plain, err := s.repo.GetTagByName(ctx, base)
		if err != nil {
			return nil, err
		}
		if plain != nil {
			return plain, nil
		}
	}
	return tag, nil
}

// MarkerPatch is a partial marker edit. Nil fields are left unchanged.
type MarkerPatch struct {
	Title        *string  `json:"title,omitempty"`
	Seconds      *float64 `json:"seconds,omitempty"`
	EndSeconds   *float64 `json:"end_seconds,omitempty"`
	ClearEnd     bool     `json:"clear_end,omitempty"`
	PrimaryTagID *string  `json:"primary_tag_id,omitempty"`
	TagIDs       []string `json:"tag_ids,omitempty"`
}

func (s *Service) UpdateMarker(ctx context.Context, markerID string, patch MarkerPatch) (*Marker, error) {
	m, err := s.marker(ctx, markerID)
	if err != nil {
		return nil, err
	}

	next := cloneMarker(m)
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Seconds != nil {
		next.Seconds = *patch.Seconds
	}
	switch {
	case patch.ClearEnd:
		next.EndSeconds = nil
	case patch.EndSeconds != nil:
		next.EndSeconds = timeline.Seconds(*patch.EndSeconds)
	}
	if patch.PrimaryTagID != nil {
		if err := s.requireTag(ctx, *patch.PrimaryTagID); err != nil {
			return nil, err
		}
		next.PrimaryTagID = *patch.PrimaryTagID
	}
	if patch.TagIDs != nil {
		next.TagIDs = append([]string{}, patch.TagIDs...)
	}
	if err := validateInterval(next.Seconds, next.EndSeconds); err != nil {
		return nil, err
	}

	return s.push(ctx, next, ActionUpdate, "")
}

// Split cuts a marker at t into [start, t) and [t, end). The original keeps
// its id and the first half. It is shortened before the second half is
// created and restored when that fails.
func (s *Service) Split(ctx context.Context, markerID string, t float64) (*Marker, *Marker, error) {
	m, err := s.marker(ctx, markerID)
	if err != nil {
		return nil, nil, err
	}
	if m.EndSeconds == nil || t <= m.Seconds || t >= *m.EndSeconds {
		return nil, nil, fmt.Errorf("%w: %.3f not in (%.3f, end)", ErrInvalidSplit, t, m.Seconds)
	}

	first := cloneMarker(m)
	first.EndSeconds = timeline.Seconds(t)
	updated, err := s.push(ctx, first, ActionSplit, fmt.Sprintf("split at %.3f", t))
	if err != nil {
		return nil, nil, err
	}

	second := cloneMarker(m)
	second.ID = ""
	second.Seconds = t
	created, err := s.create(ctx, second, ActionSplit, "second half of "+m.ID)
	if err != nil {
		if _, rerr := s.push(ctx, m, ActionUpdate, "split undone"); rerr != nil {
			s.logger.Error("failed to restore split marker", "marker_id", m.ID, "error", rerr)
		}
		return nil, nil, err
	}
	return updated, created, nil
}

// Duplicate copies a marker, interval and tags, into a new one.
func (s *Service) Duplicate(ctx context.Context, markerID string) (*Marker, error) {
	m, err := s.marker(ctx, markerID)
	if err != nil {
		return nil, err
	}
	dup := cloneMarker(m)
	dup.ID = ""
	return s.create(ctx, dup, ActionDuplicate, "copy of "+m.ID)
}

// NewMarker describes a marker added by hand.
type NewMarker struct {
	Title        string   `json:"title"`
	PrimaryTagID string   `json:"primary_tag_id"`
	Seconds      float64  `json:"seconds"`
	EndSeconds   *float64 `json:"end_seconds,omitempty"`
	TagIDs       []string `json:"tag_ids,omitempty"`
}

// CreateManual adds a marker to a scene and tags it as manual.
func (s *Service) CreateManual(ctx context.Context, sceneID string, in NewMarker) (*Marker, error) {
	cfg := s.Settings().Timeline

	scene, err := s.repo.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
	}
	if err := validateInterval(in.Seconds, in.EndSeconds); err != nil {
		return nil, err
	}
	if err := s.requireTag(ctx, in.PrimaryTagID); err != nil {
		return nil, err
	}

	m := &Marker{
		SceneID:      sceneID,
		Title:        strings.TrimSpace(in.Title),
		PrimaryTagID: in.PrimaryTagID,
		Seconds:      in.Seconds,
		EndSeconds:   in.EndSeconds,
		TagIDs:       withTag(append([]string{}, in.TagIDs...), cfg.ManualTagID),
	}
	return s.create(ctx, m, ActionCreate, "")
}

func (s *Service) Delete(ctx context.Context, markerID string) error {
	m, err := s.marker(ctx, markerID)
	if err != nil {
		return err
	}
	return s.destroy(ctx, m, "")
}

func (s *Service) marker(ctx context.Context, id string) (*Marker, error) {
	m, err := s.repo.GetMarker(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	return m, nil
}

func (s *Service) requireTag(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: primary tag is required", ErrInvalidMarker)
	}
	tag, err := s.repo.GetTag(ctx, id)
	if err != nil {
		return err
	}
	if tag == nil {
		return fmt.Errorf("%w: unknown tag %s", ErrInvalidMarker, id)
	}
	return nil
}

func validateInterval(start float64, end *float64) error {
	if start < 0 {
		return fmt.Errorf("%w: start must not be negative", ErrInvalidMarker)
	}
	if end != nil && *end <= start {
		return fmt.Errorf("%w: end must be after start", ErrInvalidMarker)
	}
	return nil
}

// push writes an edited marker to Stash and caches what Stash returned.
func (s *Service) push(ctx context.Context, m *Marker, action, detail string) (*Marker, error) {
	updated, err := s.remote.UpdateMarker(ctx, markerInput(m))
	if err != nil {
		return nil, fmt.Errorf("update marker %s: %w", m.ID, err)
	}
	stored := markerFromStash(*updated, m.SceneID)
	if err := s.repo.SaveMarker(ctx, stored); err != nil {
		return nil, err
	}
	s.record(ctx, stored.SceneID, stored.ID, action, detail)
	return stored, nil
}

func (s *Service) create(ctx context.Context, m *Marker, action, detail string) (*Marker, error) {
	created, err := s.remote.CreateMarker(ctx, markerInput(m))
	if err != nil {
		return nil, fmt.Errorf("create marker: %w", err)
	}
	stored := markerFromStash(*created, m.SceneID)
	if err := s.repo.SaveMarker(ctx, stored); err != nil {
		return nil, err
	}
	s.record(ctx, stored.SceneID, stored.ID, action, detail)
	return stored, nil
}

func (s *Service) destroy(ctx context.Context, m *Marker, detail string) error {
	if err := s.remote.DestroyMarker(ctx, m.ID); err != nil {
		return fmt.Errorf("delete marker %s: %w", m.ID, err)
	}
	if err := s.repo.DeleteMarker(ctx, m.ID); err != nil {
		return err
	}
	s.record(ctx, m.SceneID, m.ID, ActionDelete, detail)
	return nil
}
