// Package timeline lays scene markers out into swimlanes and sub-tracks and
// resolves keyboard navigation over that layout.
//
// Everything in this package is a pure function of its inputs: the same
// markers, Config and selection always produce the same lanes, tracks and
// navigation targets. Callers re-run the layout after every mutation.
package timeline

// Epsilon is the width given to markers that have no usable end time.
const Epsilon = 0.001

// Tag is a Stash tag together with its ancestor chain.
type Tag struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Parents []Tag  `json:"parents,omitempty"`
}

// Marker is a tagged interval on a scene, in seconds.
type Marker struct {
	ID         string   `json:"id"`
	SceneID    string   `json:"scene_id"`
	Title      string   `json:"title,omitempty"`
	PrimaryTag Tag      `json:"primary_tag"`
	Tags       []Tag    `json:"tags"`
	Start      float64  `json:"start"`
	End        *float64 `json:"end,omitempty"`
}

// EffectiveEnd returns the end used for overlap tests. Markers without an
// end, or with an end at or before the start, are Epsilon wide.
func (m Marker) EffectiveEnd() float64 {
	if m.End == nil || *m.End <= m.Start {
		return m.Start + Epsilon
	}
	return *m.End
}

// HasTag reports whether one of the secondary tags has the given id.
func (m Marker) HasTag(id string) bool {
	if id == "" {
		return false
	}
	for _, t := range m.Tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Overlaps reports whether the half-open effective intervals intersect.
func (m Marker) Overlaps(o Marker) bool {
	return m.Start < o.EffectiveEnd() && o.Start < m.EffectiveEnd()
}

// Gap returns the distance in seconds between two intervals, 0 when they
// touch or overlap.
func (m Marker) Gap(o Marker) float64 {
	switch {
	case o.Start >= m.EffectiveEnd():
		return o.Start - m.EffectiveEnd()
	case m.Start >= o.EffectiveEnd():
		return m.Start - o.EffectiveEnd()
	default:
		return 0
	}
}

// Seconds returns a pointer to v, for building optional end times.
func Seconds(v float64) *float64 {
	return &v
}
