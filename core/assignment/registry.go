package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("assignment not found")
	ErrExists   = errors.New("an assignment for this teacher, subject and stream already exists")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error
		// QueryAssignments filters on any non-zero field of the filter.
		QueryAssignments(ctx context.Context, filter QueryFilter) ([]Assignment, error)
	}

	// Registry is the source of truth for "which teacher may touch which
	// subject for which stream". Pure lookup over assignment rows; no side
	// effects.
	Registry struct {
		repo Repository
	}
)

type QueryFilter struct {
	TeacherID string
	SubjectID string
	StreamID  string
}

func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// Query lists assignment rows matching the filter.
func (reg *Registry) Query(ctx context.Context, filter QueryFilter) ([]Assignment, error) {
	return reg.repo.QueryAssignments(ctx, filter)
}

// HasCapability reports whether an assignment row (teacher, subject, stream)
// exists with the given capability flag set.
func (reg *Registry) HasCapability(ctx context.Context, teacherID, subjectID, streamID string, cap Capability) (bool, error) {
	if !allCapabilities[cap] {
		return false, UnknownCapabilityError{Capability: cap}
	}
	asgs, err := reg.repo.QueryAssignments(ctx, QueryFilter{TeacherID: teacherID, SubjectID: subjectID, StreamID: streamID})
	if err != nil {
		return false, errors.Wrap(err, "querying assignments")
	}
	for _, asg := range asgs {
		if ok, err := asg.Grants(cap); err != nil {
			return false, err
		} else if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasSubjectCapability reports whether the teacher holds the capability for
// the subject on any stream.
func (reg *Registry) HasSubjectCapability(ctx context.Context, teacherID, subjectID string, cap Capability) (bool, error) {
	return reg.HasCapability(ctx, teacherID, subjectID, "", cap)
}

// HasAnyAssignment reports whether the teacher has any assignment row for
// the subject, regardless of capability flags.
func (reg *Registry) HasAnyAssignment(ctx context.Context, teacherID, subjectID string) (bool, error) {
	asgs, err := reg.repo.QueryAssignments(ctx, QueryFilter{TeacherID: teacherID, SubjectID: subjectID})
	if err != nil {
		return false, errors.Wrap(err, "querying assignments")
	}
	return len(asgs) > 0, nil
}

// StreamsFor returns the set of stream IDs the teacher is assigned to.
func (reg *Registry) StreamsFor(ctx context.Context, teacherID string) ([]string, error) {
	asgs, err := reg.repo.QueryAssignments(ctx, QueryFilter{TeacherID: teacherID})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	seen := make(map[string]bool, len(asgs))
	streams := make([]string, 0, len(asgs))
	for _, asg := range asgs {
		if !seen[asg.StreamID] {
			seen[asg.StreamID] = true
			streams = append(streams, asg.StreamID)
		}
	}
	return streams, nil
}

// StreamsForSubject returns the stream IDs the teacher is assigned to for
// the given subject.
func (reg *Registry) StreamsForSubject(ctx context.Context, teacherID, subjectID string) ([]string, error) {
	asgs, err := reg.repo.QueryAssignments(ctx, QueryFilter{TeacherID: teacherID, SubjectID: subjectID})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	seen := make(map[string]bool, len(asgs))
	streams := make([]string, 0, len(asgs))
	for _, asg := range asgs {
		if !seen[asg.StreamID] {
			seen[asg.StreamID] = true
			streams = append(streams, asg.StreamID)
		}
	}
	return streams, nil
}

// SubjectsFor returns the set of subject IDs the teacher is assigned to.
// When onlyEnterable is true, only subjects with at least one
// can_enter_results row are returned.
func (reg *Registry) SubjectsFor(ctx context.Context, teacherID string, onlyEnterable bool) ([]string, error) {
	asgs, err := reg.repo.QueryAssignments(ctx, QueryFilter{TeacherID: teacherID})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	seen := make(map[string]bool, len(asgs))
	subjects := make([]string, 0, len(asgs))
	for _, asg := range asgs {
		if onlyEnterable && !asg.CanEnterResults {
			continue
		}
		if !seen[asg.SubjectID] {
			seen[asg.SubjectID] = true
			subjects = append(subjects, asg.SubjectID)
		}
	}
	return subjects, nil
}

// NewAssignment contains information needed to create an assignment row.
type NewAssignment struct {
	TeacherID        string `json:"teacher_id" validate:"required"`
	SubjectID        string `json:"subject_id" validate:"required"`
	StreamID         string `json:"stream_id" validate:"required"`
	CanEnterResults  bool   `json:"can_enter_results"`
	CanViewAnalytics bool   `json:"can_view_analytics"`
}

// Assign creates an assignment row for (teacher, subject, stream).
func (reg *Registry) Assign(ctx context.Context, na NewAssignment) (Assignment, error) {
	now := time.Now().UTC()
	asg := Assignment{
		ID:               uuid.New().String(),
		TeacherID:        na.TeacherID,
		SubjectID:        na.SubjectID,
		StreamID:         na.StreamID,
		CanEnterResults:  na.CanEnterResults,
		CanViewAnalytics: na.CanViewAnalytics,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return reg.repo.CreateAssignment(ctx, asg)
}

// Revoke removes an assignment row.
func (reg *Registry) Revoke(ctx context.Context, id string) error {
	return reg.repo.DeleteAssignment(ctx, id)
}
