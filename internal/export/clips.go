package export

import "github.com/markerlane/markerlane-agent/internal/timeline"

// ClipsFromLayout turns the approved markers of a layout into clips in
// chronological order, named after their lane. Markers without an end are
// returned in skipped. A non-empty lanes list restricts the lanes used.
func ClipsFromLayout(l timeline.Layout, mediaPath string, lanes []string) (clips []Clip, skipped []string) {
	allowed := make(map[string]bool, len(lanes))
	for _, name := range lanes {
		allowed[name] = true
	}

	skipped = []string{}
	for _, m := range l.Chronological {
		p := l.Placements[m.ID]
		if !timeline.IsApproved(p.Status) {
			continue
		}
		lane := l.Lanes[p.LaneIndex].Name
		if len(allowed) > 0 && !allowed[lane] {
			continue
		}
		if m.End == nil || *m.End <= m.Start {
			skipped = append(skipped, m.ID)
			continue
		}
		clips = append(clips, Clip{
			MarkerID:  m.ID,
			ClipName:  SanitizeName(lane, 160),
			MediaPath: mediaPath,
			Start:     m.Start,
			End:       *m.End,
		})
	}
	return clips, skipped
}
