package exam

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Status is the exam lifecycle state. The only source of truth for
// publication: "is published" is always derived from it, never stored
// separately.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusPublished Status = "published"
)

var AllStatuses = []Status{StatusDraft, StatusActive, StatusCompleted, StatusPublished}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// IsPublished reports whether the exam is in its terminal state.
func (s Status) IsPublished() bool { return s == StatusPublished }

// AllowsResultEntry reports whether results may be written under this
// status. Deliberately asymmetric with status semantics: "completed" does
// not lock data, only "published" does, so late corrections remain possible
// until publication.
func (s Status) AllowsResultEntry() bool { return s != StatusPublished }

// ScopeType declares which classes an exam covers.
type ScopeType string

const (
	ScopeAllSchool       ScopeType = "all_school"
	ScopeSelectedClasses ScopeType = "selected_classes"
	ScopeSingleClass     ScopeType = "single_class"
)

// SubjectScopeType declares which subjects an exam covers.
type SubjectScopeType string

const (
	SubjectScopeAll      SubjectScopeType = "all_subjects"
	SubjectScopeSelected SubjectScopeType = "selected_subjects"
	SubjectScopeSingle   SubjectScopeType = "single_subject"
)

// Exam is scoped to one school and owned by the school_admin who created it.
type Exam struct {
	ID               string           `json:"id"`
	SchoolID         string           `json:"school_id"`
	Name             string           `json:"name"`
	ScopeType        ScopeType        `json:"scope_type"`
	ClassIDs         []string         `json:"class_ids,omitempty"`
	SubjectScopeType SubjectScopeType `json:"subject_scope_type"`
	SubjectIDs       []string         `json:"subject_ids,omitempty"`
	Status           Status           `json:"exam_status"`
	GradingSystemID  string           `json:"grading_system_id"`
	CreatedBy        string           `json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"` // UTC
	UpdatedAt        time.Time        `json:"updated_at"` // UTC
}

// IsPublished is derived from Status; there is no denormalized flag to keep
// in sync.
func (e Exam) IsPublished() bool { return e.Status.IsPublished() }

// SubjectSetting is the per (exam, subject) marking configuration. When
// HasPapers is false the subject is implicitly a single paper weighted 100%.
type SubjectSetting struct {
	ID         string      `json:"id"`
	ExamID     string      `json:"exam_id"`
	SubjectID  string      `json:"subject_id"`
	TotalMarks float64     `json:"total_marks"`
	PassMark   float64     `json:"pass_mark"`
	HasPapers  bool        `json:"has_papers"`
	PaperCount int         `json:"paper_count"`
	Papers     []Paper     `json:"papers,omitempty"`
}

// EffectivePapers returns the explicit papers, or the implicit single
// 100%-weight paper for a paperless subject.
func (ss SubjectSetting) EffectivePapers() []Paper {
	if ss.HasPapers {
		return ss.Papers
	}
	return []Paper{{
		ID:               ss.ID, // implicit paper shares the setting's identity
		SubjectSettingID: ss.ID,
		Name:             "Paper 1",
		Marks:            ss.TotalMarks,
		PassMark:         ss.PassMark,
		PercentageWeight: 100,
	}}
}

// Paper is one scored component of a subject within an exam.
type Paper struct {
	ID               string  `json:"id"`
	SubjectSettingID string  `json:"subject_setting_id"`
	Name             string  `json:"paper_name"`
	Marks            float64 `json:"marks"`
	PassMark         float64 `json:"pass_mark"`
	DurationMinutes  int     `json:"duration_minutes"`
	PercentageWeight float64 `json:"percentage_weight"`
}

// Result is a student's outcome for one (exam, subject). Owned by the
// entering account until the exam is published, after which it is a
// read-only artifact of the school.
type Result struct {
	ID         string      `json:"id"`
	ExamID     string      `json:"exam_id"`
	SubjectID  string      `json:"subject_id"`
	StudentID  string      `json:"student_id"`
	IsAbsent   bool        `json:"is_absent"`
	EnteredBy  string      `json:"entered_by"`
	VerifiedBy null.String `json:"verified_by,omitempty"`
	TotalMarks float64     `json:"total_marks"`
	Grade      string      `json:"grade"`
	CreatedAt  time.Time   `json:"created_at"` // UTC
	UpdatedAt  time.Time   `json:"updated_at"` // UTC

	Papers []PaperResult `json:"papers,omitempty"`
}

// PaperResult holds the raw marks for one paper of a result. Marks is null
// when the student was absent; IsAbsent always mirrors the parent Result.
type PaperResult struct {
	ID       string       `json:"id"`
	ResultID string       `json:"result_id"`
	PaperID  string       `json:"paper_id"`
	Marks    null.Float64 `json:"marks"`
	IsAbsent bool         `json:"is_absent"`
}

// GradingSystem is an ordered set of bands covering [0,100] with no gaps or
// overlaps, used to map a computed total to a letter grade.
type GradingSystem struct {
	ID       string      `json:"id"`
	SchoolID string      `json:"school_id"`
	Name     string      `json:"name"`
	Bands    []GradeBand `json:"bands"`
}

// GradeBand is a (lower, upper, label) interval. Lower bounds are
// inclusive; a total exactly on a boundary resolves to the higher band.
type GradeBand struct {
	Label      string  `json:"label"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}
