package exam

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// weightTolerance is the accepted rounding slack when paper weights are
// checked against 100%.
const weightTolerance = 0.01

// Config validation rule identifiers, carried by ConfigError so callers can
// tell exactly which constraint a subject broke.
const (
	RuleWeightSum    = "paper weights must sum to 100"
	RulePassMark     = "pass_mark must not exceed total marks"
	RulePaperCount   = "paper_count must match the number of papers"
	RuleSubjectScope = "subject settings must match the declared subject scope"
	RulePaperMarks   = "paper marks must be positive"
)

// ConfigError reports a configuration rule broken by one subject.
// Configuration save is all-or-nothing: a single ConfigError blocks the
// whole save.
type ConfigError struct {
	SubjectID string
	Rule      string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("invalid exam configuration for subject %s: %s", e.SubjectID, e.Rule)
}

var (
	// ErrGradingSystemInvalid is raised when a grading band table is not
	// contiguous and exhaustive over [0,100]; the engine never guesses a
	// grade from a malformed table.
	ErrGradingSystemInvalid = errors.New("grading system bands must cover [0,100] with no gaps or overlaps")
)

// NewPaper is one paper of a subject's configuration input.
type NewPaper struct {
	Name             string  `json:"paper_name" validate:"required"`
	Marks            float64 `json:"marks" validate:"gt=0"`
	PassMark         float64 `json:"pass_mark" validate:"gte=0"`
	DurationMinutes  int     `json:"duration_minutes" validate:"gte=0"`
	PercentageWeight float64 `json:"percentage_weight" validate:"gt=0,lte=100"`
}

// NewSubjectSetting is the configuration input for one (exam, subject).
type NewSubjectSetting struct {
	SubjectID  string     `json:"subject_id" validate:"required"`
	TotalMarks float64    `json:"total_marks" validate:"gt=0"`
	PassMark   float64    `json:"pass_mark" validate:"gte=0"`
	HasPapers  bool       `json:"has_papers"`
	PaperCount int        `json:"paper_count" validate:"gte=0"`
	Papers     []NewPaper `json:"papers" validate:"dive"`
}

// NewExam is the full exam creation input.
type NewExam struct {
	SchoolID         string              `json:"school_id" validate:"required"`
	Name             string              `json:"name" validate:"required"`
	ScopeType        ScopeType           `json:"scope_type" validate:"required"`
	ClassIDs         []string            `json:"class_ids"`
	SubjectScopeType SubjectScopeType    `json:"subject_scope_type" validate:"required"`
	SubjectIDs       []string            `json:"subject_ids"`
	GradingSystemID  string              `json:"grading_system_id" validate:"required"`
	Settings         []NewSubjectSetting `json:"settings" validate:"required,dive"`
}

// Validate enforces every configuration-time rule. Weight validation is the
// engine's sole authority: the UI may auto-balance for convenience, but the
// server re-validates regardless of client input.
func (ne *NewExam) Validate() error {
	ne.Name = core.CleanString(ne.Name)
	if err := core.Validate.Struct(ne); err != nil {
		return err
	}

	for _, ss := range ne.Settings {
		if err := ss.validate(); err != nil {
			return err
		}
	}
	return ne.validateSubjectScope()
}

func (ss NewSubjectSetting) validate() error {
	if ss.PassMark > ss.TotalMarks {
		return ConfigError{SubjectID: ss.SubjectID, Rule: RulePassMark}
	}
	if !ss.HasPapers {
		if len(ss.Papers) > 0 || (ss.PaperCount > 1) {
			return ConfigError{SubjectID: ss.SubjectID, Rule: RulePaperCount}
		}
		return nil
	}

	if ss.PaperCount != len(ss.Papers) || len(ss.Papers) == 0 {
		return ConfigError{SubjectID: ss.SubjectID, Rule: RulePaperCount}
	}

	var weightSum float64
	for _, p := range ss.Papers {
		if p.Marks <= 0 {
			return ConfigError{SubjectID: ss.SubjectID, Rule: RulePaperMarks}
		}
		if p.PassMark > p.Marks {
			return ConfigError{SubjectID: ss.SubjectID, Rule: RulePassMark}
		}
		weightSum += p.PercentageWeight
	}
	if math.Abs(weightSum-100) > weightTolerance {
		return ConfigError{SubjectID: ss.SubjectID, Rule: RuleWeightSum}
	}
	return nil
}

// validateSubjectScope checks the setting set against the declared subject
// scope: single_subject needs exactly one setting; selected_subjects must
// match the selected id set exactly (no orphans, no omissions).
func (ne NewExam) validateSubjectScope() error {
	switch ne.SubjectScopeType {
	case SubjectScopeSingle:
		if len(ne.Settings) != 1 {
			return ConfigError{Rule: RuleSubjectScope}
		}
	case SubjectScopeSelected:
		if len(ne.Settings) != len(ne.SubjectIDs) {
			return ConfigError{Rule: RuleSubjectScope}
		}
		selected := make(map[string]bool, len(ne.SubjectIDs))
		for _, id := range ne.SubjectIDs {
			selected[id] = true
		}
		for _, ss := range ne.Settings {
			if !selected[ss.SubjectID] {
				return ConfigError{SubjectID: ss.SubjectID, Rule: RuleSubjectScope}
			}
		}
	}
	return nil
}

// ValidateGradingSystem checks that bands are contiguous and exhaustive over
// [0,100]. Bands are sorted by lower bound; each band's upper bound must
// meet the next band's lower bound.
func ValidateGradingSystem(gs GradingSystem) error {
	if len(gs.Bands) == 0 {
		return ErrGradingSystemInvalid
	}

	bands := append([]GradeBand(nil), gs.Bands...)
	sort.Slice(bands, func(i, j int) bool { return bands[i].LowerBound < bands[j].LowerBound })

	if bands[0].LowerBound != 0 || bands[len(bands)-1].UpperBound < 100 {
		return ErrGradingSystemInvalid
	}
	for i, b := range bands {
		if b.UpperBound <= b.LowerBound {
			return ErrGradingSystemInvalid
		}
		if i > 0 && b.LowerBound != bands[i-1].UpperBound {
			return ErrGradingSystemInvalid
		}
	}
	return nil
}
