package timeline

import (
	"math"
	"strings"
)

// Move is a navigation request as bound to the review keyboard.
type Move string

const (
	MoveLeft  Move = "left"
	MoveRight Move = "right"
	MoveUp    Move = "up"
	MoveDown  Move = "down"

	MoveUpAnyTime   Move = "shift+up"
	MoveDownAnyTime Move = "shift+down"

	MovePrevChronological Move = "shift+left"
	MoveNextChronological Move = "shift+right"

	MoveNextUnprocessed       Move = "next-unprocessed"
	MovePrevUnprocessed       Move = "prev-unprocessed"
	MoveNextUnprocessedInLane Move = "next-unprocessed-lane"
	MovePrevUnprocessedInLane Move = "prev-unprocessed-lane"

	MoveNextShot Move = "next-shot"
	MovePrevShot Move = "prev-shot"
)

var moves = []Move{
	MoveLeft, MoveRight, MoveUp, MoveDown,
	MoveUpAnyTime, MoveDownAnyTime,
	MovePrevChronological, MoveNextChronological,
	MoveNextUnprocessed, MovePrevUnprocessed,
	MoveNextUnprocessedInLane, MovePrevUnprocessedInLane,
	MoveNextShot, MovePrevShot,
}

// ParseMove accepts the names above, case-insensitively.
func ParseMove(s string) (Move, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range moves {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// ProximityThreshold is how far, in seconds, an up/down move may reach for a
// marker that does not overlap the current one.
const ProximityThreshold = 3.0

// shotTolerance keeps repeated shot jumps from landing on the shot the
// playhead is already parked on.
const shotTolerance = 0.05

// Request is one navigation step.
type Request struct {
	Move        Move
	SelectedID  string
	CurrentTime float64
}

// Result is the outcome of a navigation step. SelectedID is always either
// the request's selection or a marker in the layout. SeekTo is set by shot
// moves only.
type Result struct {
	SelectedID string   `json:"selected_id"`
	Changed    bool     `json:"changed"`
	SeekTo     *float64 `json:"seek_to,omitempty"`
}

// Resolve computes the selection after req. It never fails: when no target
// exists the selection is returned unchanged.
func Resolve(l Layout, req Request) Result {
	keep := Result{SelectedID: req.SelectedID}

	switch req.Move {
	case MoveNextShot:
		return shotMove(l, req, keep, 1)
	case MovePrevShot:
		return shotMove(l, req, keep, -1)
	}

	cur, ok := l.Find(req.SelectedID)
	if !ok {
		var target string
		switch req.Move {
		case MoveNextUnprocessed:
			target = unprocessedFromTime(l, req.CurrentTime, 1)
		case MovePrevUnprocessed:
			target = unprocessedFromTime(l, req.CurrentTime, -1)
		}
		return changeTo(keep, target)
	}

	var target string
	switch req.Move {
	case MoveLeft:
		target = withinLane(l, cur, -1)
	case MoveRight:
		target = withinLane(l, cur, 1)
	case MoveUp:
		target = acrossLanes(l, cur, -1)
	case MoveDown:
		target = acrossLanes(l, cur, 1)
	case MoveUpAnyTime:
		target = adjacentLaneAnyTime(l, cur, -1)
	case MoveDownAnyTime:
		target = adjacentLaneAnyTime(l, cur, 1)
	case MovePrevChronological:
		target = chronological(l, cur, -1)
	case MoveNextChronological:
		target = chronological(l, cur, 1)
	case MoveNextUnprocessed:
		target = nextUnprocessed(l, l.Chronological, cur.Marker.ID, 1)
	case MovePrevUnprocessed:
		target = nextUnprocessed(l, l.Chronological, cur.Marker.ID, -1)
	case MoveNextUnprocessedInLane:
		target = nextUnprocessed(l, l.Lanes[cur.LaneIndex].Markers, cur.Marker.ID, 1)
	case MovePrevUnprocessedInLane:
		target = nextUnprocessed(l, l.Lanes[cur.LaneIndex].Markers, cur.Marker.ID, -1)
	}
	return changeTo(keep, target)
}

func changeTo(keep Result, target string) Result {
	if target == "" || target == keep.SelectedID {
		return keep
	}
	return Result{SelectedID: target, Changed: true}
}

func withinLane(l Layout, cur Placement, step int) string {
	markers := l.Lanes[cur.LaneIndex].Markers
	next := cur.Position + step
	if next < 0 || next >= len(markers) {
		return ""
	}
	return markers[next].ID
}

// acrossLanes scans lanes away from the current one and stops at the first
// lane holding a marker that overlaps the current interval or lies within
// ProximityThreshold of it.
func acrossLanes(l Layout, cur Placement, step int) string {
	for i := cur.LaneIndex + step; i >= 0 && i < len(l.Lanes); i += step {
		if id := closestInLane(l.Lanes[i].Markers, cur.Marker, true); id != "" {
			return id
		}
	}
	return ""
}

func adjacentLaneAnyTime(l Layout, cur Placement, step int) string {
	i := cur.LaneIndex + step
	if i < 0 || i >= len(l.Lanes) {
		return ""
	}
	return closestInLane(l.Lanes[i].Markers, cur.Marker, false)
}

// closestInLane picks the candidate with the smallest start delta from ref.
// With temporal set, overlapping markers are preferred and anything further
// than ProximityThreshold away is ignored. Ties keep the earlier marker.
func closestInLane(markers []Marker, ref Marker, temporal bool) string {
	best, bestDelta := "", math.Inf(1)
	pick := func(accept func(Marker) bool) {
		for _, m := range markers {
			if !accept(m) {
				continue
			}
			if d := math.Abs(m.Start - ref.Start); d < bestDelta {
				best, bestDelta = m.ID, d
			}
		}
	}

	if !temporal {
		pick(func(Marker) bool { return true })
		return best
	}

	pick(ref.Overlaps)
	if best != "" {
		return best
	}
	pick(func(m Marker) bool { return ref.Gap(m) <= ProximityThreshold })
	return best
}

func chronological(l Layout, cur Placement, step int) string {
	idx := indexOf(l.Chronological, cur.Marker.ID)
	if idx < 0 {
		return ""
	}
	next := idx + step
	if next < 0 || next >= len(l.Chronological) {
		return ""
	}
	return l.Chronological[next].ID
}

// nextUnprocessed scans markers from the one after id, wrapping around, for
// the first unprocessed marker.
func nextUnprocessed(l Layout, markers []Marker, id string, step int) string {
	n := len(markers)
	start := indexOf(markers, id)
	if start < 0 || n == 0 {
		return ""
	}
	for k := 1; k < n; k++ {
		m := markers[((start+step*k)%n+n)%n]
		if l.Placements[m.ID].Status == StatusUnprocessed {
			return m.ID
		}
	}
	return ""
}

// unprocessedFromTime is the fallback when nothing is selected: the scan
// starts at the playhead instead of a marker.
func unprocessedFromTime(l Layout, t float64, step int) string {
	markers := l.Chronological
	n := len(markers)
	if n == 0 {
		return ""
	}
	pos := firstAtOrAfter(markers, t)
	if step > 0 {
		for k := 0; k < n; k++ {
			i := (pos + k) % n
			if l.Placements[markers[i].ID].Status == StatusUnprocessed {
				return markers[i].ID
			}
		}
		return ""
	}
	for k := 0; k < n; k++ {
		i := ((pos-1-k)%n + n) % n
		if l.Placements[markers[i].ID].Status == StatusUnprocessed {
			return markers[i].ID
		}
	}
	return ""
}

func shotMove(l Layout, req Request, keep Result, step int) Result {
	shots := l.ShotBoundaries
	if step > 0 {
		for _, s := range shots {
			if s.Start > req.CurrentTime+shotTolerance {
				keep.SeekTo = Seconds(s.Start)
				return keep
			}
		}
		return keep
	}
	for i := len(shots) - 1; i >= 0; i-- {
		if shots[i].Start < req.CurrentTime-shotTolerance {
			keep.SeekTo = Seconds(shots[i].Start)
			return keep
		}
	}
	return keep
}

// Reconcile keeps id when it still names an action marker in the layout.
// Otherwise it picks the first action marker at or after t, then the last
// one, then nothing.
func Reconcile(l Layout, id string, t float64) string {
	if _, ok := l.Find(id); ok {
		return id
	}
	n := len(l.Chronological)
	if n == 0 {
		return ""
	}
	if i := firstAtOrAfter(l.Chronological, t); i < n {
		return l.Chronological[i].ID
	}
	return l.Chronological[n-1].ID
}

func firstAtOrAfter(markers []Marker, t float64) int {
	for i, m := range markers {
		if m.Start >= t {
			return i
		}
	}
	return len(markers)
}

func indexOf(markers []Marker, id string) int {
	for i, m := range markers {
		if m.ID == id {
			return i
		}
	}
	return -1
}
