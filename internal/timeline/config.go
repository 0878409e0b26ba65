package timeline

// Config carries the static tag configuration every core function needs.
// It is passed explicitly; the package never reads the environment.
type Config struct {
	ConfirmedTagID    string
	RejectedTagID     string
	ManualTagID       string
	ShotBoundaryTagID string
	AIReviewedTagID   string

	// MarkerGroupParentTagID is the tag whose direct children are marker
	// groups. Empty disables grouping.
	MarkerGroupParentTagID string

	// SuffixStatus enables the legacy _CONFIRMED / _REJECTED tag name
	// suffixes as a status source next to the status tags.
	SuffixStatus bool

	// CorrespondingTags maps an AI tag (by id or name) to the name of its
	// canonical tag.
	CorrespondingTags map[string]string

	// GroupTagOrder lists tag names per marker group, keyed by group display
	// name or group tag id.
	GroupTagOrder map[string][]string
}

// CanonicalName returns the corresponding canonical tag name for tag, or
// the tag's own name when no mapping exists.
func (c Config) CanonicalName(tag Tag) string {
	if name, ok := c.CorrespondingTags[tag.ID]; ok && tag.ID != "" && name != "" {
		return name
	}
	if name, ok := c.CorrespondingTags[tag.Name]; ok && tag.Name != "" && name != "" {
		return name
	}
	if tag.Name == "" {
		return tag.ID
	}
	return tag.Name
}

// HasCorrespondingTag reports whether tag is mapped onto another tag.
func (c Config) HasCorrespondingTag(tag Tag) bool {
	return c.CanonicalName(tag) != tag.Name && tag.Name != ""
}

func (c Config) tagOrder(g *Group) []string {
	if g == nil {
		return nil
	}
	if order, ok := c.GroupTagOrder[g.Name]; ok {
		return order
	}
	if order, ok := c.GroupTagOrder[g.TagID]; ok {
		return order
	}
	return nil
}
