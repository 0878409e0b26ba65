package review

import (
	"time"

	"github.com/markerlane/markerlane-agent/internal/stash"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

// maxTagDepth bounds the ancestor chain attached to a primary tag.
const maxTagDepth = 8

// tagIndex resolves cached tags into timeline tags with their ancestors.
type tagIndex struct {
	tags map[string]*Tag
	memo map[tagDepth]timeline.Tag
}

type tagDepth struct {
	id    string
	depth int
}

func newTagIndex(tags []*Tag) *tagIndex {
	idx := &tagIndex{
		tags: make(map[string]*Tag, len(tags)),
		memo: make(map[tagDepth]timeline.Tag),
	}
	for _, t := range tags {
		idx.tags[t.ID] = t
	}
	return idx
}

func (idx *tagIndex) name(id string) string {
	if t, ok := idx.tags[id]; ok {
		return t.Name
	}
	return ""
}

func (idx *tagIndex) shallow(id string) timeline.Tag {
	return timeline.Tag{ID: id, Name: idx.name(id)}
}

func (idx *tagIndex) resolve(id string) timeline.Tag {
	return idx.build(id, 0)
}

func (idx *tagIndex) build(id string, depth int) timeline.Tag {
	key := tagDepth{id, depth}
	if t, ok := idx.memo[key]; ok {
		return t
	}

	out := idx.shallow(id)
	if t, ok := idx.tags[id]; ok && depth < maxTagDepth {
		for _, pid := range t.ParentIDs {
			out.Parents = append(out.Parents, idx.build(pid, depth+1))
		}
	}
	idx.memo[key] = out
	return out
}

func (idx *tagIndex) marker(m *Marker) timeline.Marker {
	tags := make([]timeline.Tag, 0, len(m.TagIDs))
	for _, id := range m.TagIDs {
		tags = append(tags, idx.shallow(id))
	}
	return timeline.Marker{
		ID:         m.ID,
		SceneID:    m.SceneID,
		Title:      m.Title,
		PrimaryTag: idx.resolve(m.PrimaryTagID),
		Tags:       tags,
		Start:      m.Seconds,
		End:        m.EndSeconds,
	}
}

func (idx *tagIndex) markers(ms []*Marker) []timeline.Marker {
	out := make([]timeline.Marker, 0, len(ms))
	for _, m := range ms {
		out = append(out, idx.marker(m))
	}
	return out
}

func tagFromStash(t stash.Tag) *Tag {
	out := &Tag{ID: t.ID, Name: t.Name}
	for _, p := range t.Parents {
		out.ParentIDs = append(out.ParentIDs, p.ID)
	}
	return out
}

func sceneFromStash(s *stash.Scene, reviewedTagID string) *Scene {
	file := s.PrimaryFile()
	scene := &Scene{
		ID:        s.ID,
		Title:     s.Title,
		Path:      file.Path,
		Duration:  file.Duration,
		FrameRate: file.FrameRate,
		SyncedAt:  time.Now().UTC(),
	}
	if reviewedTagID != "" {
		for _, t := range s.Tags {
			if t.ID == reviewedTagID {
				scene.Reviewed = true
				break
			}
		}
	}
	return scene
}

func markerFromStash(m stash.Marker, sceneID string) *Marker {
	out := &Marker{
		ID:           m.ID,
		SceneID:      m.Scene.ID,
		Title:        m.Title,
		PrimaryTagID: m.PrimaryTag.ID,
		Seconds:      m.Seconds,
		EndSeconds:   m.EndSeconds,
		TagIDs:       make([]string, 0, len(m.Tags)),
		UpdatedAt:    time.Now().UTC(),
	}
	if out.SceneID == "" {
		out.SceneID = sceneID
	}
	for _, t := range m.Tags {
		out.TagIDs = append(out.TagIDs, t.ID)
	}
	return out
}

func markerInput(m *Marker) stash.MarkerInput {
	return stash.MarkerInput{
		ID:           m.ID,
		SceneID:      m.SceneID,
		Title:        m.Title,
		Seconds:      m.Seconds,
		EndSeconds:   m.EndSeconds,
		PrimaryTagID: m.PrimaryTagID,
		TagIDs:       m.TagIDs,
	}
}

func cloneMarker(m *Marker) *Marker {
	c := *m
	c.TagIDs = append([]string(nil), m.TagIDs...)
	if m.EndSeconds != nil {
		c.EndSeconds = timeline.Seconds(*m.EndSeconds)
	}
	return &c
}

func withoutTags(ids []string, drop ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		skip := false
		for _, d := range drop {
			if d != "" && id == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, id)
		}
	}
	return out
}

func withTag(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
