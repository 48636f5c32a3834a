package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validNewExam() NewExam {
	return NewExam{
		SchoolID:         "sch1",
		Name:             "End Term 1",
		ScopeType:        ScopeSingleClass,
		ClassIDs:         []string{"c1"},
		SubjectScopeType: SubjectScopeSingle,
		GradingSystemID:  "gs1",
		Settings: []NewSubjectSetting{{
			SubjectID:  "sub1",
			TotalMarks: 100,
			PassMark:   40,
			HasPapers:  true,
			PaperCount: 2,
			Papers: []NewPaper{
				{Name: "Paper 1", Marks: 100, PassMark: 40, PercentageWeight: 60},
				{Name: "Paper 2", Marks: 100, PassMark: 40, PercentageWeight: 40},
			},
		}},
	}
}

func Test_NewExam_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ne := validNewExam()
		assert.NoError(t, ne.Validate())
	})

	t.Run("weights must sum to 100", func(t *testing.T) {
		ne := validNewExam()
		ne.Settings[0].Papers[0].PercentageWeight = 50 // 50 + 40 = 90
		assert.Equal(t, ConfigError{SubjectID: "sub1", Rule: RuleWeightSum}, ne.Validate())
	})

	t.Run("weights within tolerance", func(t *testing.T) {
		ne := validNewExam()
		ne.Settings[0].Papers[0].PercentageWeight = 60.005
		assert.NoError(t, ne.Validate())
	})

	t.Run("pass mark above total", func(t *testing.T) {
		ne := validNewExam()
		ne.Settings[0].PassMark = 120
		assert.Equal(t, ConfigError{SubjectID: "sub1", Rule: RulePassMark}, ne.Validate())
	})

	t.Run("paper count mismatch", func(t *testing.T) {
		ne := validNewExam()
		ne.Settings[0].PaperCount = 3
		assert.Equal(t, ConfigError{SubjectID: "sub1", Rule: RulePaperCount}, ne.Validate())
	})

	t.Run("paperless with papers attached", func(t *testing.T) {
		ne := validNewExam()
		ne.Settings[0].HasPapers = false
		assert.Equal(t, ConfigError{SubjectID: "sub1", Rule: RulePaperCount}, ne.Validate())
	})

	t.Run("paperless subject", func(t *testing.T) {
		ne := validNewExam()
		ne.Settings[0] = NewSubjectSetting{SubjectID: "sub1", TotalMarks: 100, PassMark: 40}
		assert.NoError(t, ne.Validate())
	})

	t.Run("single subject scope needs exactly one setting", func(t *testing.T) {
		ne := validNewExam()
		ne.Settings = append(ne.Settings, NewSubjectSetting{SubjectID: "sub2", TotalMarks: 100})
		assert.Equal(t, ConfigError{Rule: RuleSubjectScope}, ne.Validate())
	})

	t.Run("selected subjects must match settings exactly", func(t *testing.T) {
		ne := validNewExam()
		ne.SubjectScopeType = SubjectScopeSelected
		ne.SubjectIDs = []string{"sub1", "sub2"}
		assert.Equal(t, ConfigError{Rule: RuleSubjectScope}, ne.Validate())

		ne.SubjectIDs = []string{"sub2"}
		assert.Equal(t, ConfigError{SubjectID: "sub1", Rule: RuleSubjectScope}, ne.Validate())

		ne.SubjectIDs = []string{"sub1"}
		assert.NoError(t, ne.Validate())
	})

	t.Run("missing required fields", func(t *testing.T) {
		ne := validNewExam()
		ne.Name = ""
		assert.Error(t, ne.Validate())
	})
}
