package school

import "time"

// School is the tenancy boundary: every actor and every exam belongs to
// exactly one school.
type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Motto     string    `json:"motto,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Stream is a subdivision of a class (e.g. "Form 1 East"); the unit at which
// teacher assignments are granted.
type Stream struct {
	ID       string `json:"id"`
	SchoolID string `json:"school_id"`
	ClassID  string `json:"class_id"`
	Name     string `json:"name"`
}

// Subject belongs to a school, optionally to a department. Identity is
// stable across exams.
type Subject struct {
	ID           string `json:"id"`
	SchoolID     string `json:"school_id"`
	DepartmentID string `json:"department_id,omitempty"`
	Name         string `json:"name"`
	Code         string `json:"code"`
}

// Student is the minimal student reference needed by the results engine.
type Student struct {
	ID         string `json:"id"`
	SchoolID   string `json:"school_id"`
	StreamID   string `json:"stream_id"`
	UserID     string `json:"user_id,omitempty"`
	Name       string `json:"name"`
	AdmissionNo string `json:"admission_no"`
}
