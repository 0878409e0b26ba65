package timeline

import "sort"

// Placement is where a marker is drawn: its lane, the sub-track within the
// lane and its position in the lane's start-ordered marker list.
type Placement struct {
	Marker     Marker `json:"-"`
	LaneIndex  int    `json:"lane_index"`
	TrackIndex int    `json:"track_index"`
	Position   int    `json:"position"`
	Status     Status `json:"status"`
}

// PackTracks assigns each marker of lane the lowest track whose previous
// occupant has ended by the marker's start, opening a new track otherwise.
// Processing in start order makes the track count equal to the largest set
// of mutually overlapping markers.
func PackTracks(lane Lane, laneIndex int) ([]Placement, int) {
	markers := make([]Marker, len(lane.Markers))
	copy(markers, lane.Markers)
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].Start < markers[j].Start
	})

	var trackEnds []float64
	placements := make([]Placement, 0, len(markers))

	for i, m := range markers {
		track := -1
		for t, end := range trackEnds {
			if end <= m.Start {
				track = t
				break
			}
		}
		if track < 0 {
			track = len(trackEnds)
			trackEnds = append(trackEnds, 0)
		}
		trackEnds[track] = m.EffectiveEnd()

		placements = append(placements, Placement{
			Marker:     m,
			LaneIndex:  laneIndex,
			TrackIndex: track,
			Position:   i,
		})
	}

	return placements, len(trackEnds)
}

// MaxOverlap returns the largest number of markers whose effective
// intervals share a common instant.
func MaxOverlap(markers []Marker) int {
	type edge struct {
		at    float64
		delta int
	}
	edges := make([]edge, 0, len(markers)*2)
	for _, m := range markers {
		edges = append(edges, edge{m.Start, 1}, edge{m.EffectiveEnd(), -1})
	}
	// Ends sort before starts at the same instant: intervals are half-open.
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at != edges[j].at {
			return edges[i].at < edges[j].at
		}
		return edges[i].delta < edges[j].delta
	})

	best, cur := 0, 0
	for _, e := range edges {
		cur += e.delta
		if cur > best {
			best = cur
		}
	}
	return best
}
