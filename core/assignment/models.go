package assignment

import (
	"fmt"
	"time"
)

// Capability is a named permission carried by an assignment row, distinct
// from a role. The set is closed: unknown capability names are an error,
// never a silent false.
type Capability string

const (
	CapEnterResults  Capability = "enter_results"
	CapViewAnalytics Capability = "view_analytics"
)

var allCapabilities = map[Capability]bool{
	CapEnterResults:  true,
	CapViewAnalytics: true,
}

// UnknownCapabilityError is returned when a capability name outside the
// closed set is looked up; silently returning false here would mask
// authorization bugs.
type UnknownCapabilityError struct {
	Capability Capability
}

func (e UnknownCapabilityError) Error() string {
	return fmt.Sprintf("unknown capability %q", string(e.Capability))
}

// ParseCapability validates a capability name against the closed set.
func ParseCapability(s string) (Capability, error) {
	cap := Capability(s)
	if !allCapabilities[cap] {
		return "", UnknownCapabilityError{Capability: cap}
	}
	return cap, nil
}

// Assignment is a (teacher, subject, stream) record carrying capability
// flags; the atomic unit of teacher authorization. A teacher may act on a
// subject only through an assignment row carrying the relevant flag.
type Assignment struct {
	ID               string    `json:"id"`
	TeacherID        string    `json:"teacher_id"`
	SubjectID        string    `json:"subject_id"`
	StreamID         string    `json:"stream_id"`
	CanEnterResults  bool      `json:"can_enter_results"`
	CanViewAnalytics bool      `json:"can_view_analytics"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

// Grants reports whether the row carries the given capability flag.
func (a Assignment) Grants(cap Capability) (bool, error) {
	switch cap {
	case CapEnterResults:
		return a.CanEnterResults, nil
	case CapViewAnalytics:
		return a.CanViewAnalytics, nil
	default:
		return false, UnknownCapabilityError{Capability: cap}
	}
}
