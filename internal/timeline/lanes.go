package timeline

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// MarkerGroupPrefix is the label Stash marker-group tags are named with,
// e.g. "Marker Group: 2. Positions".
const MarkerGroupPrefix = "Marker Group:"

const maxAncestorDepth = 16

// Group is the marker group a lane is clustered under.
type Group struct {
	TagID    string `json:"tag_id"`
	Name     string `json:"name"`
	Number   int    `json:"number,omitempty"`
	Numbered bool   `json:"numbered"`
}

// Lane is one swimlane: markers sharing a grouping key, ordered by start.
type Lane struct {
	Name       string   `json:"name"`
	Group      *Group   `json:"group,omitempty"`
	Markers    []Marker `json:"markers"`
	IsRejected bool     `json:"is_rejected"`
	TrackCount int      `json:"track_count"`
}

// LaneKey returns the grouping key of m: the canonical corresponding tag
// name when one is configured, else the primary tag name.
func LaneKey(m Marker, cfg Config) string {
	return cfg.CanonicalName(m.PrimaryTag)
}

// GroupLanes partitions the non-shot-boundary markers into lanes and orders
// them. An empty input yields an empty, non-nil slice.
func GroupLanes(markers []Marker, cfg Config) []Lane {
	buckets := make(map[string]*Lane)
	var keys []string

	for _, m := range markers {
		if IsShotBoundary(m, cfg) {
			continue
		}
		key := LaneKey(m, cfg)
		lane, ok := buckets[key]
		if !ok {
			lane = &Lane{Name: key}
			buckets[key] = lane
			keys = append(keys, key)
		}
		lane.Markers = append(lane.Markers, m)
	}

	lanes := make([]Lane, 0, len(keys))
	for _, key := range keys {
		lane := buckets[key]
		sortByStart(lane.Markers)
		for _, m := range lane.Markers {
			if g := markerGroup(m.PrimaryTag, cfg); g != nil {
				lane.Group = g
				break
			}
		}
		lane.IsRejected = allRejected(lane.Markers, cfg)
		lanes = append(lanes, *lane)
	}

	sortLanes(lanes, cfg)
	return lanes
}

func sortByStart(markers []Marker) {
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].Start < markers[j].Start
	})
}

func allRejected(markers []Marker, cfg Config) bool {
	if len(markers) == 0 {
		return false
	}
	for _, m := range markers {
		if Classify(m, cfg) != StatusRejected {
			return false
		}
	}
	return true
}

// markerGroup walks the ancestors of tag breadth-first and returns the
// nearest one that is a direct child of the marker-group parent tag.
func markerGroup(tag Tag, cfg Config) *Group {
	if cfg.MarkerGroupParentTagID == "" {
		return nil
	}

	type item struct {
		tag   Tag
		depth int
	}
	visited := map[string]bool{tag.ID: true}
	queue := make([]item, 0, len(tag.Parents))
	for _, p := range tag.Parents {
		queue = append(queue, item{p, 1})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.tag.ID != "" && visited[cur.tag.ID] {
			continue
		}
		visited[cur.tag.ID] = true

		for _, p := range cur.tag.Parents {
			if p.ID == cfg.MarkerGroupParentTagID {
				name, number, numbered := ParseGroupName(cur.tag.Name)
				return &Group{TagID: cur.tag.ID, Name: name, Number: number, Numbered: numbered}
			}
		}
		if cur.depth >= maxAncestorDepth {
			continue
		}
		for _, p := range cur.tag.Parents {
			queue = append(queue, item{p, cur.depth + 1})
		}
	}
	return nil
}

// ParseGroupName strips the marker-group label and a leading "N. " ordering
// prefix from a group tag name.
func ParseGroupName(raw string) (name string, number int, numbered bool) {
	name = strings.TrimSpace(raw)
	if len(name) >= len(MarkerGroupPrefix) && strings.EqualFold(name[:len(MarkerGroupPrefix)], MarkerGroupPrefix) {
		name = strings.TrimSpace(name[len(MarkerGroupPrefix):])
	}

	dot := strings.Index(name, ".")
	if dot <= 0 {
		return name, 0, false
	}
	n, err := strconv.Atoi(name[:dot])
	if err != nil || n < 0 {
		return name, 0, false
	}
	return strings.TrimSpace(name[dot+1:]), n, true
}

func sortLanes(lanes []Lane, cfg Config) {
	col := collate.New(language.English)

	rank := func(l Lane) int {
		order := cfg.tagOrder(l.Group)
		for i, name := range order {
			if name == l.Name {
				return i
			}
		}
		return len(order)
	}

	alpha := func(a, b string) int {
		if c := col.CompareString(a, b); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	}

	sort.SliceStable(lanes, func(i, j int) bool {
		a, b := lanes[i], lanes[j]
		ga, gb := a.Group, b.Group
		switch {
		case ga != nil && gb == nil:
			return true
		case ga == nil && gb != nil:
			return false
		case ga != nil && gb != nil:
			if ga.Numbered != gb.Numbered {
				return ga.Numbered
			}
			if ga.Numbered && ga.Number != gb.Number {
				return ga.Number < gb.Number
			}
			if c := alpha(ga.Name, gb.Name); c != 0 {
				return c < 0
			}
			if ga.TagID != gb.TagID {
				return ga.TagID < gb.TagID
			}
			if ra, rb := rank(a), rank(b); ra != rb {
				return ra < rb
			}
		}
		return alpha(a.Name, b.Name) < 0
	})
}
