package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/authz"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/user"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

func mkUser(id, schoolID string, roles ...string) user.User {
	return user.User{ID: id, SchoolID: schoolID, Roles: roles}
}

func mkExam(schoolID string, status exam.Status) exam.Exam {
	return exam.Exam{ID: "ex1", SchoolID: schoolID, Name: "Midterm", Status: status}
}

func newEngine(t *testing.T) (*authz.Engine, *assignment.Registry) {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)
	reg := assignment.NewRegistry(inmemdb.NewAssignmentRepository(db))
	return authz.NewEngine(reg), reg
}

func assertDenied(t *testing.T, err error, gate authz.Gate, reason authz.Reason) {
	t.Helper()

	authErr, ok := authz.IsDenial(err)
	require.True(t, ok, "expected a denial, got %v", err)
	assert.Equal(t, gate, authErr.Gate)
	assert.Equal(t, reason, authErr.Reason)
}

func TestEngine_CanCreateExam(t *testing.T) {
	eng, _ := newEngine(t)

	admin := mkUser("a1", "sch1", user.RoleSchoolAdmin)
	teacher := mkUser("t1", "sch1", user.RoleTeacher)
	global := mkUser("g1", "", user.RoleSuperAdmin)

	assert.NoError(t, eng.CanCreateExam(admin, "sch1"))
	assert.NoError(t, eng.CanCreateExam(global, "sch1"))
	assertDenied(t, eng.CanCreateExam(teacher, "sch1"), authz.GateCreateExam, authz.ReasonWrongRole)
	assertDenied(t, eng.CanCreateExam(admin, "sch2"), authz.GateCreateExam, authz.ReasonNotInSchool)
}

func TestEngine_CanEnterResults(t *testing.T) {
	ctx := context.Background()
	eng, reg := newEngine(t)

	// t1 may enter math on stream 1e; t2 only views analytics on math.
	_, err := reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1", SubjectID: "math", StreamID: "1e", CanEnterResults: true,
	})
	require.NoError(t, err)
	_, err = reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t2", SubjectID: "math", StreamID: "1e", CanViewAnalytics: true,
	})
	require.NoError(t, err)

	admin := mkUser("a1", "sch1", user.RoleSchoolAdmin)
	t1 := mkUser("t1", "sch1", user.RoleTeacher)
	t2 := mkUser("t2", "sch1", user.RoleTeacher)
	student := mkUser("s1", "sch1", user.RoleStudent)

	tests := []struct {
		name    string
		actor   user.User
		ex      exam.Exam
		subject string
		reason  authz.Reason // empty means allowed
	}{
		{"assigned teacher, active exam", t1, mkExam("sch1", exam.StatusActive), "math", ""},
		{"assigned teacher, completed exam", t1, mkExam("sch1", exam.StatusCompleted), "math", ""},
		{"assigned teacher, draft exam", t1, mkExam("sch1", exam.StatusDraft), "math", authz.ReasonExamLocked},
		{"admin, draft exam", admin, mkExam("sch1", exam.StatusDraft), "math", ""},
		{"published exam locks everyone", admin, mkExam("sch1", exam.StatusPublished), "math", authz.ReasonExamLocked},
		{"view-only assignment", t2, mkExam("sch1", exam.StatusActive), "math", authz.ReasonNoAssignment},
		{"wrong subject", t1, mkExam("sch1", exam.StatusActive), "chem", authz.ReasonNoAssignment},
		{"student", student, mkExam("sch1", exam.StatusActive), "math", authz.ReasonWrongRole},
		{"wrong school", t1, mkExam("sch2", exam.StatusActive), "math", authz.ReasonNotInSchool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.CanEnterResults(ctx, tt.actor, tt.ex, tt.subject)
			if tt.reason == "" {
				assert.NoError(t, err)
			} else {
				assertDenied(t, err, authz.GateEnterExamResults, tt.reason)
			}
		})
	}
}

func TestEngine_CanViewExam(t *testing.T) {
	ctx := context.Background()
	eng, reg := newEngine(t)

	_, err := reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1", SubjectID: "math", StreamID: "1e", CanViewAnalytics: true,
	})
	require.NoError(t, err)

	admin := mkUser("a1", "sch1", user.RoleSchoolAdmin)
	t1 := mkUser("t1", "sch1", user.RoleTeacher)
	t2 := mkUser("t2", "sch1", user.RoleTeacher)
	ex := mkExam("sch1", exam.StatusActive)

	assert.NoError(t, eng.CanViewExam(ctx, admin, ex, []string{"math", "chem"}))

	// any assignment on any of the exam's subjects suffices
	assert.NoError(t, eng.CanViewExam(ctx, t1, ex, []string{"chem", "math"}))

	assertDenied(t, eng.CanViewExam(ctx, t2, ex, []string{"math"}), authz.GateViewExam, authz.ReasonNoAssignment)
	assertDenied(t, eng.CanViewExam(ctx, t1, mkExam("sch2", exam.StatusActive), []string{"math"}),
		authz.GateViewExam, authz.ReasonNotInSchool)
}

func TestEngine_CanPublishResults(t *testing.T) {
	eng, _ := newEngine(t)

	admin := mkUser("a1", "sch1", user.RoleSchoolAdmin)
	hod := mkUser("h1", "sch1", user.RoleHOD)

	assert.NoError(t, eng.CanPublishResults(admin, mkExam("sch1", exam.StatusCompleted)))
	assertDenied(t, eng.CanPublishResults(admin, mkExam("sch1", exam.StatusActive)),
		authz.GatePublishExamResults, authz.ReasonExamLocked)
	assertDenied(t, eng.CanPublishResults(hod, mkExam("sch1", exam.StatusCompleted)),
		authz.GatePublishExamResults, authz.ReasonWrongRole)
}

func TestEngine_CanViewResult(t *testing.T) {
	ctx := context.Background()
	eng, reg := newEngine(t)

	_, err := reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1", SubjectID: "math", StreamID: "1e",
	})
	require.NoError(t, err)

	res := exam.Result{ID: "r1", ExamID: "ex1", SubjectID: "math", StudentID: "std1", EnteredBy: "t1"}
	t1 := mkUser("t1", "sch1", user.RoleTeacher)
	owner := mkUser("u-std1", "sch1", user.RoleStudent)
	other := mkUser("u-std2", "sch1", user.RoleStudent)

	// a bare assignment row grants viewing, no capability flag needed
	assert.NoError(t, eng.CanViewResult(ctx, t1, mkExam("sch1", exam.StatusActive), res, ""))

	// students see their own result only once published
	assert.NoError(t, eng.CanViewResult(ctx, owner, mkExam("sch1", exam.StatusPublished), res, "std1"))
	assertDenied(t, eng.CanViewResult(ctx, owner, mkExam("sch1", exam.StatusCompleted), res, "std1"),
		authz.GateViewResult, authz.ReasonExamLocked)
	assertDenied(t, eng.CanViewResult(ctx, other, mkExam("sch1", exam.StatusPublished), res, "std2"),
		authz.GateViewResult, authz.ReasonExamLocked)
}

func TestEngine_CanMutateResult(t *testing.T) {
	ctx := context.Background()
	eng, reg := newEngine(t)

	asg, err := reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1", SubjectID: "math", StreamID: "1e", CanEnterResults: true,
	})
	require.NoError(t, err)

	res := exam.Result{ID: "r1", ExamID: "ex1", SubjectID: "math", StudentID: "std1", EnteredBy: "t1"}
	t1 := mkUser("t1", "sch1", user.RoleTeacher)
	t2 := mkUser("t2", "sch1", user.RoleTeacher)
	admin := mkUser("a1", "sch1", user.RoleSchoolAdmin)

	assert.NoError(t, eng.CanMutateResult(ctx, authz.GateUpdateResult, t1, mkExam("sch1", exam.StatusActive), res))
	assert.NoError(t, eng.CanMutateResult(ctx, authz.GateDeleteResult, admin, mkExam("sch1", exam.StatusActive), res))

	assertDenied(t, eng.CanMutateResult(ctx, authz.GateUpdateResult, t2, mkExam("sch1", exam.StatusActive), res),
		authz.GateUpdateResult, authz.ReasonNoAssignment)
	assertDenied(t, eng.CanMutateResult(ctx, authz.GateUpdateResult, t1, mkExam("sch1", exam.StatusPublished), res),
		authz.GateUpdateResult, authz.ReasonExamLocked)

	// revoking the assignment revokes mutation rights on past entries too
	require.NoError(t, reg.Revoke(ctx, asg.ID))
	assertDenied(t, eng.CanMutateResult(ctx, authz.GateUpdateResult, t1, mkExam("sch1", exam.StatusActive), res),
		authz.GateUpdateResult, authz.ReasonNoAssignment)
}

func TestEngine_CanVerifyResult(t *testing.T) {
	eng, _ := newEngine(t)

	ex := mkExam("sch1", exam.StatusCompleted)

	assert.NoError(t, eng.CanVerifyResult(mkUser("a1", "sch1", user.RoleSchoolAdmin), ex))
	assert.NoError(t, eng.CanVerifyResult(mkUser("h1", "sch1", user.RoleHOD), ex))
	assertDenied(t, eng.CanVerifyResult(mkUser("t1", "sch1", user.RoleTeacher), ex),
		authz.GateApproveResults, authz.ReasonWrongRole)
}

func TestEngine_CanViewAnalytics(t *testing.T) {
	ctx := context.Background()
	eng, reg := newEngine(t)

	_, err := reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1", SubjectID: "math", StreamID: "1e", CanViewAnalytics: true,
	})
	require.NoError(t, err)
	_, err = reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1", SubjectID: "chem", StreamID: "1e", CanEnterResults: true,
	})
	require.NoError(t, err)

	t1 := mkUser("t1", "sch1", user.RoleTeacher)

	assert.NoError(t, eng.CanViewAnalytics(ctx, t1, "sch1", "math"))
	assert.NoError(t, eng.CanViewAnalytics(ctx, mkUser("h1", "sch1", user.RoleHOD), "sch1", "bio"))
	assertDenied(t, eng.CanViewAnalytics(ctx, t1, "sch1", "chem"),
		authz.GateViewSubjectAnalytics, authz.ReasonNoAssignment)
}

func TestParseGate(t *testing.T) {
	g, err := authz.ParseGate("enter-exam-results")
	require.NoError(t, err)
	assert.Equal(t, authz.GateEnterExamResults, g)

	_, err = authz.ParseGate("fly-to-the-moon")
	assert.Equal(t, authz.UnknownGateError{Gate: "fly-to-the-moon"}, err)
}
