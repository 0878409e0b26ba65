package review

import (
	"context"
	"fmt"
	"strconv"

	"github.com/markerlane/markerlane-agent/internal/logging"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

// Readiness counts the review state of a scene's markers. Shot boundaries
// are not counted.
type Readiness struct {
	SceneID     string `json:"scene_id"`
	Total       int    `json:"total"`
	Unprocessed int    `json:"unprocessed"`
	Confirmed   int    `json:"confirmed"`
	Rejected    int    `json:"rejected"`
	Manual      int    `json:"manual"`
	Ready       bool   `json:"ready"`
}

func (s *Service) Readiness(ctx context.Context, sceneID string) (*Readiness, error) {
	view, err := s.loadScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	return readinessOf(sceneID, view.markers, view.settings.Timeline), nil
}

func readinessOf(sceneID string, markers []timeline.Marker, cfg timeline.Config) *Readiness {
	r := &Readiness{SceneID: sceneID}
	for _, m := range markers {
		if timeline.IsShotBoundary(m, cfg) {
			continue
		}
		r.Total++
		switch timeline.Classify(m, cfg) {
		case timeline.StatusUnprocessed:
			r.Unprocessed++
		case timeline.StatusConfirmed:
			r.Confirmed++
		case timeline.StatusRejected:
			r.Rejected++
		case timeline.StatusManual:
			r.Manual++
		}
	}
	r.Ready = r.Unprocessed == 0
	return r
}

// Completion summarises what CompleteScene changed.
type Completion struct {
	SceneID   string `json:"scene_id"`
	Deleted   int    `json:"deleted"`
	Converted int    `json:"converted"`
	Derived   int    `json:"derived"`
	Tagged    int    `json:"tagged"`
}

// CompleteScene finalises a fully reviewed scene: rejected markers are
// deleted, approved markers move to their canonical tag and get the
// AI-reviewed tag, derived markers are created for implied tags and the
// scene itself is tagged as reviewed.
func (s *Service) CompleteScene(ctx context.Context, sceneID string) (*Completion, error) {
	view, err := s.loadScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	cfg := view.settings.Timeline
	log := logging.WithSceneID(s.logger, sceneID)

	if r := readinessOf(sceneID, view.markers, cfg); !r.Ready {
		return nil, fmt.Errorf("%w: %d left", ErrSceneNotReady, r.Unprocessed)
	}

	res := &Completion{SceneID: sceneID}
	var approved []*Marker

	for i, tm := range view.markers {
		if timeline.IsShotBoundary(tm, cfg) {
			continue
		}
		m := view.cached[i]
		status := timeline.Classify(tm, cfg)

		if status == timeline.StatusRejected {
			if err := s.destroy(ctx, m, "rejected"); err != nil {
				return res, err
			}
			res.Deleted++
			continue
		}
		if !timeline.IsApproved(status) {
			continue
		}

		next := cloneMarker(m)
		converted := false
		if cfg.HasCorrespondingTag(tm.PrimaryTag) {
			name := cfg.CanonicalName(tm.PrimaryTag)
			canonical, err := s.repo.GetTagByName(ctx, name)
			if err != nil {
				return res, err
			}
			if canonical == nil {
				log.Warn("canonical tag missing in stash", "tag", name, "marker_id", m.ID)
			} else if canonical.ID != next.PrimaryTagID {
				next.PrimaryTagID = canonical.ID
				converted = true
			}
		}
		tagged := cfg.AIReviewedTagID != "" && !tm.HasTag(cfg.AIReviewedTagID)
		next.TagIDs = withTag(next.TagIDs, cfg.AIReviewedTagID)

		if converted || tagged {
			if m, err = s.push(ctx, next, ActionUpdate, "completion"); err != nil {
				return res, err
			}
		}
		if converted {
			res.Converted++
		}
		if tagged {
			res.Tagged++
		}
		approved = append(approved, m)
	}

	derived, err := s.deriveMarkers(ctx, approved, view.settings)
	res.Derived = derived
	if err != nil {
		return res, err
	}

	if cfg.AIReviewedTagID != "" {
		if err := s.remote.AddSceneTag(ctx, sceneID, cfg.AIReviewedTagID); err != nil {
			return res, fmt.Errorf("tag scene %s: %w", sceneID, err)
		}
	}
	if err := s.repo.SetSceneReviewed(ctx, sceneID, true); err != nil {
		return res, err
	}

	s.record(ctx, sceneID, "", ActionComplete, fmt.Sprintf(
		"deleted=%d converted=%d derived=%d tagged=%d", res.Deleted, res.Converted, res.Derived, res.Tagged))
	log.Info("scene completed", "deleted", res.Deleted, "converted", res.Converted, "derived", res.Derived)
	return res, nil
}

// deriveMarkers creates a marker for every tag implied by an approved
// marker's primary tag, unless a marker with that tag and interval exists.
func (s *Service) deriveMarkers(ctx context.Context, approved []*Marker, settings Settings) (int, error) {
	if settings.Derivations.Len() == 0 {
		return 0, nil
	}
	cfg := settings.Timeline

	seen := make(map[string]bool, len(approved))
	for _, m := range approved {
		seen[intervalKey(m.PrimaryTagID, m.Seconds, m.EndSeconds)] = true
	}

	n := 0
	for _, m := range approved {
		for _, tagID := range settings.Derivations.Derive(m.PrimaryTagID) {
			key := intervalKey(tagID, m.Seconds, m.EndSeconds)
			if seen[key] {
				continue
			}
			seen[key] = true

			d := &Marker{
				SceneID:      m.SceneID,
				Title:        m.Title,
				PrimaryTagID: tagID,
				Seconds:      m.Seconds,
				TagIDs:       withTag(withTag([]string{}, cfg.ConfirmedTagID), cfg.AIReviewedTagID),
			}
			if m.EndSeconds != nil {
				d.EndSeconds = timeline.Seconds(*m.EndSeconds)
			}
			if _, err := s.create(ctx, d, ActionDerive, "from "+m.ID); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func intervalKey(tagID string, start float64, end *float64) string {
	key := tagID + "@" + strconv.FormatFloat(start, 'f', 3, 64)
	if end != nil {
		key += "-" + strconv.FormatFloat(*end, 'f', 3, 64)
	}
	return key
}
