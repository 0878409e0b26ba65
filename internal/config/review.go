package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/markerlane/markerlane-agent/internal/timeline"
)

// Review holds the tag rules that drive classification, lane grouping and
// scene completion. It is read from review.toml.
type Review struct {
	SuffixStatus       bool `toml:"suffix_status"`
	MaxDerivationDepth int  `toml:"max_derivation_depth"`

	Tags              ReviewTags                  `toml:"tags"`
	CorrespondingTags []CorrespondingTag          `toml:"corresponding_tags,omitempty"`
	MarkerGroups      map[string]MarkerGroupOrder `toml:"marker_groups,omitempty"`
	Derivations       []Derivation                `toml:"derivations,omitempty"`
}

// ReviewTags are Stash tag ids with a reserved meaning.
type ReviewTags struct {
	Confirmed         string `toml:"confirmed"`
	Rejected          string `toml:"rejected"`
	Manual            string `toml:"manual"`
	ShotBoundary      string `toml:"shot_boundary"`
	AIReviewed        string `toml:"ai_reviewed"`
	MarkerGroupParent string `toml:"marker_group_parent"`
}

// CorrespondingTag maps an AI tag, by id or name, onto a canonical tag name.
type CorrespondingTag struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// MarkerGroupOrder lists tag names in display order within one group.
type MarkerGroupOrder struct {
	Order []string `toml:"order"`
}

// Derivation says a confirmed marker tagged From also yields markers for
// every tag id in Implies.
type Derivation struct {
	From    string   `toml:"from"`
	Implies []string `toml:"implies"`
}

// DefaultReview returns the rules used when no review.toml exists.
func DefaultReview() Review {
	return Review{
		SuffixStatus:       true,
		MaxDerivationDepth: timeline.DefaultMaxDerivationDepth,
	}
}

// LoadReview reads and validates the review rules at path. A missing file
// yields the defaults; the returned bool reports whether the file existed.
func LoadReview(path string) (*Review, bool, error) {
	cfg := DefaultReview()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return &cfg, false, nil
		}
		return nil, false, fmt.Errorf("read review config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, true, fmt.Errorf("parse review config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, true, err
	}
	return &cfg, true, nil
}

// WriteDefaultReview writes the default rules to path, refusing to overwrite.
func WriteDefaultReview(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(DefaultReview())
	if err != nil {
		return fmt.Errorf("encode review config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (r *Review) normalize() {
	t := &r.Tags
	for _, s := range []*string{&t.Confirmed, &t.Rejected, &t.Manual, &t.ShotBoundary, &t.AIReviewed, &t.MarkerGroupParent} {
		*s = strings.TrimSpace(*s)
	}
	if r.MaxDerivationDepth == 0 {
		r.MaxDerivationDepth = timeline.DefaultMaxDerivationDepth
	}
	for i := range r.CorrespondingTags {
		r.CorrespondingTags[i].From = strings.TrimSpace(r.CorrespondingTags[i].From)
		r.CorrespondingTags[i].To = strings.TrimSpace(r.CorrespondingTags[i].To)
	}
	for i := range r.Derivations {
		r.Derivations[i].From = strings.TrimSpace(r.Derivations[i].From)
	}
}

// Validate ensures the rules are usable.
func (r *Review) Validate() error {
	if r.MaxDerivationDepth < 1 || r.MaxDerivationDepth > 64 {
		return errors.New("max_derivation_depth must be between 1 and 64")
	}
	if r.Tags.Confirmed != "" && r.Tags.Confirmed == r.Tags.Rejected {
		return errors.New("tags.confirmed and tags.rejected must differ")
	}
	seen := make(map[string]bool, len(r.CorrespondingTags))
	for i, ct := range r.CorrespondingTags {
		if ct.From == "" || ct.To == "" {
			return fmt.Errorf("corresponding_tags[%d]: from and to are required", i)
		}
		if seen[ct.From] {
			return fmt.Errorf("corresponding_tags[%d]: duplicate from %q", i, ct.From)
		}
		seen[ct.From] = true
	}
	for i, d := range r.Derivations {
		if d.From == "" {
			return fmt.Errorf("derivations[%d]: from is required", i)
		}
		if len(d.Implies) == 0 {
			return fmt.Errorf("derivations[%d]: implies must not be empty", i)
		}
	}
	return nil
}

// TimelineConfig converts the rules into the layout engine's configuration.
func (r *Review) TimelineConfig() timeline.Config {
	cfg := timeline.Config{
		ConfirmedTagID:         r.Tags.Confirmed,
		RejectedTagID:          r.Tags.Rejected,
		ManualTagID:            r.Tags.Manual,
		ShotBoundaryTagID:      r.Tags.ShotBoundary,
		AIReviewedTagID:        r.Tags.AIReviewed,
		MarkerGroupParentTagID: r.Tags.MarkerGroupParent,
		SuffixStatus:           r.SuffixStatus,
		CorrespondingTags:      make(map[string]string, len(r.CorrespondingTags)),
		GroupTagOrder:          make(map[string][]string, len(r.MarkerGroups)),
	}
	for _, ct := range r.CorrespondingTags {
		cfg.CorrespondingTags[ct.From] = ct.To
	}
	for name, g := range r.MarkerGroups {
		cfg.GroupTagOrder[name] = append([]string(nil), g.Order...)
	}
	return cfg
}

// DerivationGraph builds the tag implication graph.
func (r *Review) DerivationGraph() *timeline.DerivationGraph {
	g := timeline.NewDerivationGraph(r.MaxDerivationDepth)
	for _, d := range r.Derivations {
		for _, to := range d.Implies {
			g.AddEdge(d.From, strings.TrimSpace(to))
		}
	}
	return g
}
