package timeline

import "strings"

// Status is the review state of a marker.
type Status int

const (
	StatusUnprocessed Status = iota
	StatusConfirmed
	StatusRejected
	StatusManual
)

const (
	ConfirmedSuffix = "_CONFIRMED"
	RejectedSuffix  = "_REJECTED"
)

var statusNames = map[Status]string{
	StatusUnprocessed: "unprocessed",
	StatusConfirmed:   "confirmed",
	StatusRejected:    "rejected",
	StatusManual:      "manual",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, bool) {
	for st, name := range statusNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return st, true
		}
	}
	return StatusUnprocessed, false
}

// Classify derives the review status of m. Rejection wins over confirmation
// when a marker carries both.
func Classify(m Marker, cfg Config) Status {
	name := m.PrimaryTag.Name
	if (cfg.SuffixStatus && strings.HasSuffix(name, RejectedSuffix)) || m.HasTag(cfg.RejectedTagID) {
		return StatusRejected
	}
	if (cfg.SuffixStatus && strings.HasSuffix(name, ConfirmedSuffix)) || m.HasTag(cfg.ConfirmedTagID) {
		return StatusConfirmed
	}
	if m.HasTag(cfg.ManualTagID) {
		return StatusManual
	}
	return StatusUnprocessed
}

// IsShotBoundary reports whether m is a reserved shot-boundary marker.
func IsShotBoundary(m Marker, cfg Config) bool {
	return cfg.ShotBoundaryTagID != "" && m.PrimaryTag.ID == cfg.ShotBoundaryTagID
}

// IsApproved reports whether s counts as reviewed-and-kept. Manual markers
// are approved implicitly.
func IsApproved(s Status) bool {
	return s == StatusConfirmed || s == StatusManual
}
