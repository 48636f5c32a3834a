package authz

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/user"
)

// Engine evaluates the named permission predicates. Every predicate takes
// the actor explicitly; there is no ambient "current user" state in here.
// Evaluation order is role shortcuts first (cheapest, most permissive),
// assignment-table lookups second.
type Engine struct {
	registry *assignment.Registry
}

func NewEngine(registry *assignment.Registry) *Engine {
	return &Engine{registry: registry}
}

// CanCreateExam: school_admin of the target school.
func (e *Engine) CanCreateExam(actor user.User, schoolID string) error {
	if !actor.IsSchoolAdmin() {
		return deny(GateCreateExam, ReasonWrongRole)
	}
	if !actor.InSchool(schoolID) {
		return deny(GateCreateExam, ReasonNotInSchool)
	}
	return nil
}

// CanViewExam: school_admin in the same school, or a teacher assigned (any
// stream, any capability) to at least one of the exam's subjects.
func (e *Engine) CanViewExam(ctx context.Context, actor user.User, ex exam.Exam, subjectIDs []string) error {
	if !actor.InSchool(ex.SchoolID) {
		return deny(GateViewExam, ReasonNotInSchool)
	}
	if actor.IsSchoolAdmin() {
		return nil
	}
	if !actor.IsTeacher() {
		return deny(GateViewExam, ReasonWrongRole)
	}
	for _, subjectID := range subjectIDs {
		ok, err := e.registry.HasAnyAssignment(ctx, actor.ID, subjectID)
		if err != nil {
			return errors.Wrap(err, "checking assignments")
		}
		if ok {
			return nil
		}
	}
	return deny(GateViewExam, ReasonNoAssignment)
}

// CanUpdateExam: school_admin, same school, exam not published.
func (e *Engine) CanUpdateExam(actor user.User, ex exam.Exam) error {
	if !actor.IsSchoolAdmin() {
		return deny(GateUpdateExam, ReasonWrongRole)
	}
	if !actor.InSchool(ex.SchoolID) {
		return deny(GateUpdateExam, ReasonNotInSchool)
	}
	if ex.IsPublished() {
		return deny(GateUpdateExam, ReasonExamLocked)
	}
	return nil
}

// CanDeleteExam: school_admin, same school, exam not published and zero
// results. The draft-only precondition is enforced by the lifecycle.
func (e *Engine) CanDeleteExam(actor user.User, ex exam.Exam) error {
	if !actor.IsSchoolAdmin() {
		return deny(GateDeleteExam, ReasonWrongRole)
	}
	if !actor.InSchool(ex.SchoolID) {
		return deny(GateDeleteExam, ReasonNotInSchool)
	}
	if ex.IsPublished() {
		return deny(GateDeleteExam, ReasonExamLocked)
	}
	return nil
}

// CanEnterResults authorizes result entry for one (exam, subject).
// school_admin same school passes; a teacher needs an assignment row for
// the subject on any stream with can_enter_results set. Entry legality by
// status: published never; draft is admin-only (teachers wait for the exam
// to go active); active and completed allow late correction.
func (e *Engine) CanEnterResults(ctx context.Context, actor user.User, ex exam.Exam, subjectID string) error {
	if !actor.InSchool(ex.SchoolID) {
		return deny(GateEnterExamResults, ReasonNotInSchool)
	}
	if ex.IsPublished() {
		return deny(GateEnterExamResults, ReasonExamLocked)
	}
	if actor.IsSchoolAdmin() {
		return nil
	}
	if !actor.IsTeacher() {
		return deny(GateEnterExamResults, ReasonWrongRole)
	}
	if ex.Status == exam.StatusDraft {
		return deny(GateEnterExamResults, ReasonExamLocked)
	}
	ok, err := e.registry.HasSubjectCapability(ctx, actor.ID, subjectID, assignment.CapEnterResults)
	if err != nil {
		return errors.Wrap(err, "checking assignments")
	}
	if !ok {
		return deny(GateEnterExamResults, ReasonNoAssignment)
	}
	return nil
}

// CanPublishResults: school_admin, same school, only from completed state.
func (e *Engine) CanPublishResults(actor user.User, ex exam.Exam) error {
	if !actor.IsSchoolAdmin() {
		return deny(GatePublishExamResults, ReasonWrongRole)
	}
	if !actor.InSchool(ex.SchoolID) {
		return deny(GatePublishExamResults, ReasonNotInSchool)
	}
	if ex.Status != exam.StatusCompleted {
		return deny(GatePublishExamResults, ReasonExamLocked)
	}
	return nil
}

// CanViewResult: school_admin same school; teacher with any assignment on
// the result's subject (viewing does not require the enter flag); a student
// may see their own result once the exam is published. actorStudentID is
// the student record linked to the actor, empty when none.
func (e *Engine) CanViewResult(ctx context.Context, actor user.User, ex exam.Exam, res exam.Result, actorStudentID string) error {
	if !actor.InSchool(ex.SchoolID) {
		return deny(GateViewResult, ReasonNotInSchool)
	}
	if actor.IsSchoolAdmin() {
		return nil
	}
	if actor.IsTeacher() {
		ok, err := e.registry.HasAnyAssignment(ctx, actor.ID, res.SubjectID)
		if err != nil {
			return errors.Wrap(err, "checking assignments")
		}
		if ok {
			return nil
		}
		if !actor.IsStudent() {
			return deny(GateViewResult, ReasonNoAssignment)
		}
	}
	if actor.IsStudent() {
		if actorStudentID != "" && actorStudentID == res.StudentID && ex.IsPublished() {
			return nil
		}
		return deny(GateViewResult, ReasonExamLocked)
	}
	return deny(GateViewResult, ReasonWrongRole)
}

// CanMutateResult covers update-result and delete-result: forbidden once
// the parent exam is published; school_admin same school passes; otherwise
// only the original entering teacher, and only while they still hold a
// can_enter_results assignment for the subject.
func (e *Engine) CanMutateResult(ctx context.Context, gate Gate, actor user.User, ex exam.Exam, res exam.Result) error {
	if ex.IsPublished() {
		return deny(gate, ReasonExamLocked)
	}
	if !actor.InSchool(ex.SchoolID) {
		return deny(gate, ReasonNotInSchool)
	}
	if actor.IsSchoolAdmin() {
		return nil
	}
	if !actor.IsTeacher() {
		return deny(gate, ReasonWrongRole)
	}
	if res.EnteredBy != actor.ID {
		return deny(gate, ReasonNoAssignment)
	}
	ok, err := e.registry.HasSubjectCapability(ctx, actor.ID, res.SubjectID, assignment.CapEnterResults)
	if err != nil {
		return errors.Wrap(err, "checking assignments")
	}
	if !ok {
		return deny(gate, ReasonNoAssignment)
	}
	return nil
}

// CanVerifyResult: school_admin or hod, same school.
func (e *Engine) CanVerifyResult(actor user.User, ex exam.Exam) error {
	if !actor.InSchool(ex.SchoolID) {
		return deny(GateApproveResults, ReasonNotInSchool)
	}
	if actor.IsSchoolAdmin() || actor.IsHOD() {
		return nil
	}
	return deny(GateApproveResults, ReasonWrongRole)
}

// CanViewAnalytics covers view-subject-analytics and view-subject-analysis:
// school_admin or hod same school; a teacher needs a can_view_analytics
// assignment for the subject.
func (e *Engine) CanViewAnalytics(ctx context.Context, actor user.User, schoolID, subjectID string) error {
	if !actor.InSchool(schoolID) {
		return deny(GateViewSubjectAnalytics, ReasonNotInSchool)
	}
	if actor.IsSchoolAdmin() || actor.IsHOD() {
		return nil
	}
	if !actor.IsTeacher() {
		return deny(GateViewSubjectAnalytics, ReasonWrongRole)
	}
	ok, err := e.registry.HasSubjectCapability(ctx, actor.ID, subjectID, assignment.CapViewAnalytics)
	if err != nil {
		return errors.Wrap(err, "checking assignments")
	}
	if !ok {
		return deny(GateViewSubjectAnalytics, ReasonNoAssignment)
	}
	return nil
}

// CanGenerateReports covers generate-reports, view-class-reports,
// export-results and import-results: school_admin or hod, same school.
func (e *Engine) CanGenerateReports(actor user.User, schoolID string) error {
	if !actor.InSchool(schoolID) {
		return deny(GateGenerateReports, ReasonNotInSchool)
	}
	if actor.IsSchoolAdmin() || actor.IsHOD() {
		return nil
	}
	return deny(GateGenerateReports, ReasonWrongRole)
}
