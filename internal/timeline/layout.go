package timeline

import (
	"sort"
	"strings"
)

// Layout is the full swimlane view of a scene's markers.
type Layout struct {
	Lanes      []Lane
	Placements map[string]Placement

	// Chronological holds the action markers ordered by start, then lane,
	// then position within the lane.
	Chronological []Marker

	// ShotBoundaries are kept out of the lanes and ordered by start.
	ShotBoundaries []Marker
}

// BuildLayout groups, packs and classifies markers in one pass. Marker IDs
// identify placements, so only the first marker with a given ID is used.
func BuildLayout(markers []Marker, cfg Config) Layout {
	markers = uniqueByID(markers)
	layout := Layout{
		Lanes:          GroupLanes(markers, cfg),
		Placements:     make(map[string]Placement, len(markers)),
		Chronological:  make([]Marker, 0, len(markers)),
		ShotBoundaries: make([]Marker, 0),
	}

	for i := range layout.Lanes {
		placements, tracks := PackTracks(layout.Lanes[i], i)
		layout.Lanes[i].TrackCount = tracks
		for _, p := range placements {
			p.Status = Classify(p.Marker, cfg)
			layout.Placements[p.Marker.ID] = p
			layout.Chronological = append(layout.Chronological, p.Marker)
		}
	}

	sort.SliceStable(layout.Chronological, func(i, j int) bool {
		a := layout.Placements[layout.Chronological[i].ID]
		b := layout.Placements[layout.Chronological[j].ID]
		if a.Marker.Start != b.Marker.Start {
			return a.Marker.Start < b.Marker.Start
		}
		if a.LaneIndex != b.LaneIndex {
			return a.LaneIndex < b.LaneIndex
		}
		return a.Position < b.Position
	})

	for _, m := range markers {
		if IsShotBoundary(m, cfg) {
			layout.ShotBoundaries = append(layout.ShotBoundaries, m)
		}
	}
	sortByStart(layout.ShotBoundaries)

	return layout
}

func uniqueByID(markers []Marker) []Marker {
	seen := make(map[string]bool, len(markers))
	for i, m := range markers {
		if !seen[m.ID] {
			seen[m.ID] = true
			continue
		}
		out := append(make([]Marker, 0, len(markers)-1), markers[:i]...)
		for _, m := range markers[i+1:] {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
		return out
	}
	return markers
}

// Find returns the placement of the marker with the given id.
func (l Layout) Find(id string) (Placement, bool) {
	if id == "" {
		return Placement{}, false
	}
	p, ok := l.Placements[id]
	return p, ok
}

// TrackCount returns the total number of tracks over all lanes.
func (l Layout) TrackCount() int {
	n := 0
	for _, lane := range l.Lanes {
		n += lane.TrackCount
	}
	return n
}

// Filter narrows the marker set before layout. Shot boundaries always pass
// so shot navigation keeps working.
type Filter struct {
	Statuses []Status
	Query    string
}

// IsZero reports whether the filter keeps everything.
func (f Filter) IsZero() bool {
	return len(f.Statuses) == 0 && strings.TrimSpace(f.Query) == ""
}

// Apply returns the markers that pass f, in input order.
func (f Filter) Apply(markers []Marker, cfg Config) []Marker {
	if f.IsZero() {
		return markers
	}
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]Marker, 0, len(markers))
	for _, m := range markers {
		if IsShotBoundary(m, cfg) {
			out = append(out, m)
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, Classify(m, cfg)) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(LaneKey(m, cfg)), query) &&
			!strings.Contains(strings.ToLower(m.PrimaryTag.Name), query) &&
			!strings.Contains(strings.ToLower(m.Title), query) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
