package authz

import "fmt"

// Gate names the permission predicates exposed at the boundary. The set is
// closed; unknown gate names are an error, not a silent false.
type Gate string

const (
	GateCreateExam            Gate = "create-exam"
	GateViewExam              Gate = "view-exam"
	GateUpdateExam            Gate = "update-exam"
	GateDeleteExam            Gate = "delete-exam"
	GateEnterExamResults      Gate = "enter-exam-results"
	GatePublishExamResults    Gate = "publish-exam-results"
	GateViewResult            Gate = "view-result"
	GateUpdateResult          Gate = "update-result"
	GateDeleteResult          Gate = "delete-result"
	GateApproveResults        Gate = "approve-results"
	GateGenerateReports       Gate = "generate-reports"
	GateExportResults         Gate = "export-results"
	GateImportResults         Gate = "import-results"
	GateManageSubjectResults  Gate = "manage-subject-results"
	GateViewClassReports      Gate = "view-class-reports"
	GateViewSubjectAnalysis   Gate = "view-subject-analysis"
	GateEnterSubjectResults   Gate = "enter-subject-results"
	GateViewSubjectAnalytics  Gate = "view-subject-analytics"
	GateManageDeptSubjects    Gate = "manage-department-subjects"
)

var allGates = map[Gate]bool{
	GateCreateExam:           true,
	GateViewExam:             true,
	GateUpdateExam:           true,
	GateDeleteExam:           true,
	GateEnterExamResults:     true,
	GatePublishExamResults:   true,
	GateViewResult:           true,
	GateUpdateResult:         true,
	GateDeleteResult:         true,
	GateApproveResults:       true,
	GateGenerateReports:      true,
	GateExportResults:        true,
	GateImportResults:        true,
	GateManageSubjectResults: true,
	GateViewClassReports:     true,
	GateViewSubjectAnalysis:  true,
	GateEnterSubjectResults:  true,
	GateViewSubjectAnalytics: true,
	GateManageDeptSubjects:   true,
}

// UnknownGateError is returned when a gate name outside the closed set is
// evaluated.
type UnknownGateError struct {
	Gate Gate
}

func (e UnknownGateError) Error() string {
	return fmt.Sprintf("unknown authorization gate %q", string(e.Gate))
}

// ParseGate validates a gate name against the closed set.
func ParseGate(s string) (Gate, error) {
	g := Gate(s)
	if !allGates[g] {
		return "", UnknownGateError{Gate: g}
	}
	return g, nil
}
