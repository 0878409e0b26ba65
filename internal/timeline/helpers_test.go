package timeline

func tag(name string, parents ...Tag) Tag {
	return Tag{ID: "t-" + name, Name: name, Parents: parents}
}

func marker(id, tagName string, start float64, end ...float64) Marker {
	m := Marker{ID: id, SceneID: "s1", PrimaryTag: tag(tagName), Start: start}
	if len(end) > 0 {
		m.End = Seconds(end[0])
	}
	return m
}

func withTags(m Marker, tags ...Tag) Marker {
	m.Tags = append(m.Tags, tags...)
	return m
}

var (
	confirmedTag = Tag{ID: "st-confirmed", Name: "Status: Confirmed"}
	rejectedTag  = Tag{ID: "st-rejected", Name: "Status: Rejected"}
	manualTag    = Tag{ID: "src-manual", Name: "Source: Manual"}
	shotTag      = Tag{ID: "shot", Name: "Shot Boundary"}
)

func testConfig() Config {
	return Config{
		ConfirmedTagID:    confirmedTag.ID,
		RejectedTagID:     rejectedTag.ID,
		ManualTagID:       manualTag.ID,
		ShotBoundaryTagID: shotTag.ID,
		SuffixStatus:      true,
	}
}

func shot(id string, at float64) Marker {
	return Marker{ID: id, SceneID: "s1", PrimaryTag: shotTag, Start: at}
}

func laneNames(lanes []Lane) []string {
	names := make([]string, len(lanes))
	for i, l := range lanes {
		names[i] = l.Name
	}
	return names
}
