package results_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/authz"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/results"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

type env struct {
	svc      *results.Service
	repo     exam.Repository
	registry *assignment.Registry

	sch        school.School
	gs         exam.GradingSystem
	math       school.Subject
	east, west school.Stream
	s1, s2, s3 school.Student

	admin, teacher, hod, stdUser user.User
}

func setup(t *testing.T) *env {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	examRepo := inmemdb.NewExamRepository(db)
	schoolRepo := inmemdb.NewSchoolRepository(db)
	userRepo := inmemdb.NewUserRepository(db)
	registry := assignment.NewRegistry(inmemdb.NewAssignmentRepository(db))

	mailSvc := emailsvc.NewConsoleServiceMock()
	logger := logsvc.NewTestLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	svc := results.NewService(
		examRepo,
		authz.NewEngine(registry),
		registry,
		school.NewService(schoolRepo),
		user.NewService(userRepo, mailSvc),
		mailSvc,
		logger,
	)

	e := &env{svc: svc, repo: examRepo, registry: registry}
	e.sch = testutil.CreateSchool(t, schoolRepo, "Upendo High")
	e.gs = testutil.CreateGradingSystem(t, examRepo, e.sch.ID)
	e.math = testutil.CreateSubject(t, schoolRepo, e.sch.ID, "Mathematics", "MATH")
	e.east = testutil.CreateStream(t, schoolRepo, e.sch.ID, "form1", "Form 1 East")
	e.west = testutil.CreateStream(t, schoolRepo, e.sch.ID, "form1", "Form 1 West")

	e.admin = testutil.CreateUser(t, userRepo, "Head Admin", "headadmin", "admin@upendo.test",
		"Sekr3t!", e.sch.ID, []string{user.RoleSchoolAdmin}, true)
	e.teacher = testutil.CreateUser(t, userRepo, "Ms Juma", "msjuma", "juma@upendo.test",
		"Sekr3t!", e.sch.ID, []string{user.RoleTeacher}, true)
	e.hod = testutil.CreateUser(t, userRepo, "Mr Otieno", "otieno", "otieno@upendo.test",
		"Sekr3t!", e.sch.ID, []string{user.RoleHOD}, true)
	e.stdUser = testutil.CreateUser(t, userRepo, "Asha", "asha", "asha@upendo.test",
		"Sekr3t!", e.sch.ID, []string{user.RoleStudent}, true)

	e.s1 = testutil.CreateStudent(t, schoolRepo, e.sch.ID, e.east.ID, e.stdUser.ID, "Asha")
	e.s2 = testutil.CreateStudent(t, schoolRepo, e.sch.ID, e.east.ID, "", "Baraka")
	e.s3 = testutil.CreateStudent(t, schoolRepo, e.sch.ID, e.west.ID, "", "Chausiku")
	return e
}

// createExam makes a paperless single-subject exam in draft.
func (e *env) createExam(t *testing.T) exam.Exam {
	t.Helper()

	ex, err := e.svc.CreateExam(context.Background(), e.admin, exam.NewExam{
		SchoolID:         e.sch.ID,
		Name:             "Midterm",
		ScopeType:        exam.ScopeAllSchool,
		SubjectScopeType: exam.SubjectScopeSingle,
		GradingSystemID:  e.gs.ID,
		Settings: []exam.NewSubjectSetting{
			{SubjectID: e.math.ID, TotalMarks: 100, PassMark: 50},
		},
	})
	require.NoError(t, err)
	return ex
}

func (e *env) setStatus(t *testing.T, examID string, steps ...exam.Status) {
	t.Helper()

	for _, target := range steps {
		require.NoError(t, e.svc.UpdateExamStatus(context.Background(), e.admin, examID, target))
	}
}

// markRow builds an entry for the implicit paper of a paperless subject.
func (e *env) markRow(t *testing.T, examID, studentID string, marks float64) results.ResultRow {
	t.Helper()

	setting, err := e.repo.GetSubjectSetting(context.Background(), examID, e.math.ID)
	require.NoError(t, err)
	return results.ResultRow{
		StudentID:  studentID,
		PaperMarks: map[string]null.Float64{setting.ID: null.Float64From(marks)},
	}
}

func TestService_CreateExam(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	t.Run("ok", func(t *testing.T) {
		ex := e.createExam(t)
		assert.Equal(t, exam.StatusDraft, ex.Status)
		assert.Equal(t, e.admin.ID, ex.CreatedBy)
		assert.False(t, ex.IsPublished())
	})

	t.Run("teacher denied", func(t *testing.T) {
		_, err := e.svc.CreateExam(ctx, e.teacher, exam.NewExam{SchoolID: e.sch.ID})
		authErr, ok := authz.IsDenial(err)
		require.True(t, ok)
		assert.Equal(t, authz.GateCreateExam, authErr.Gate)
	})

	t.Run("bad paper weights block the whole save", func(t *testing.T) {
		_, err := e.svc.CreateExam(ctx, e.admin, exam.NewExam{
			SchoolID:         e.sch.ID,
			Name:             "Endterm",
			ScopeType:        exam.ScopeAllSchool,
			SubjectScopeType: exam.SubjectScopeSingle,
			GradingSystemID:  e.gs.ID,
			Settings: []exam.NewSubjectSetting{
				{
					SubjectID:  e.math.ID,
					TotalMarks: 100,
					PassMark:   50,
					HasPapers:  true,
					PaperCount: 2,
					Papers: []exam.NewPaper{
						{Name: "Paper 1", Marks: 100, PercentageWeight: 50},
						{Name: "Paper 2", Marks: 100, PercentageWeight: 40},
					},
				},
			},
		})
		assert.Equal(t, exam.ConfigError{SubjectID: e.math.ID, Rule: exam.RuleWeightSum}, err)
	})

	t.Run("malformed grading system", func(t *testing.T) {
		bad, err := e.repo.CreateGradingSystem(ctx, exam.GradingSystem{
			ID:       "gs-bad",
			SchoolID: e.sch.ID,
			Name:     "Gappy",
			Bands: []exam.GradeBand{
				{Label: "A", LowerBound: 60, UpperBound: 100},
				{Label: "B", LowerBound: 0, UpperBound: 50}, // gap at [50,60)
			},
		})
		require.NoError(t, err)

		_, err = e.svc.CreateExam(ctx, e.admin, exam.NewExam{
			SchoolID:         e.sch.ID,
			Name:             "Endterm",
			ScopeType:        exam.ScopeAllSchool,
			SubjectScopeType: exam.SubjectScopeSingle,
			GradingSystemID:  bad.ID,
			Settings: []exam.NewSubjectSetting{
				{SubjectID: e.math.ID, TotalMarks: 100, PassMark: 50},
			},
		})
		assert.Equal(t, exam.ErrGradingSystemInvalid, err)
	})
}

func TestService_UpdateExamStatus(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	ex := e.createExam(t)

	t.Run("teacher cannot transition", func(t *testing.T) {
		err := e.svc.UpdateExamStatus(ctx, e.teacher, ex.ID, exam.StatusActive)
		authErr, ok := authz.IsDenial(err)
		require.True(t, ok)
		assert.Equal(t, authz.ReasonWrongRole, authErr.Reason)
	})

	t.Run("publishing from draft is locked", func(t *testing.T) {
		err := e.svc.UpdateExamStatus(ctx, e.admin, ex.ID, exam.StatusPublished)
		authErr, ok := authz.IsDenial(err)
		require.True(t, ok)
		assert.Equal(t, authz.ReasonExamLocked, authErr.Reason)
	})

	t.Run("skipping a step is refused", func(t *testing.T) {
		err := e.svc.UpdateExamStatus(ctx, e.admin, ex.ID, exam.StatusCompleted)
		assert.Equal(t, exam.InvalidTransitionError{From: exam.StatusDraft, To: exam.StatusCompleted}, err)
	})

	t.Run("linear walk to published notifies admins", func(t *testing.T) {
		emailsvc.ClearSentMessages()

		e.setStatus(t, ex.ID, exam.StatusActive, exam.StatusCompleted, exam.StatusPublished)

		got, err := e.svc.GetExam(ctx, e.admin, ex.ID)
		require.NoError(t, err)
		assert.Equal(t, exam.StatusPublished, got.Status)
		assert.True(t, got.IsPublished())

		require.Len(t, emailsvc.SentMessages, 1)
		msg := emailsvc.SentMessages[0]
		assert.Equal(t, "Results published: Midterm", msg.Subject)
		require.Len(t, msg.To, 1)
		assert.Equal(t, e.admin.Email, msg.To[0].Address)
	})

	t.Run("published is terminal", func(t *testing.T) {
		err := e.svc.UpdateExamStatus(ctx, e.admin, ex.ID, exam.StatusCompleted)
		authErr, ok := authz.IsDenial(err)
		require.True(t, ok)
		assert.Equal(t, authz.ReasonExamLocked, authErr.Reason)
	})

	t.Run("stale transition loses", func(t *testing.T) {
		// two racing activations: the second writer's expected status no
		// longer matches and the repo refuses the write.
		ex2 := e.createExam(t)
		require.NoError(t, e.repo.UpdateExamStatus(ctx, ex2.ID, exam.StatusDraft, exam.StatusActive))
		err := e.repo.UpdateExamStatus(ctx, ex2.ID, exam.StatusDraft, exam.StatusActive)
		assert.Equal(t, exam.ErrStatusConflict, err)
	})
}

func TestService_SaveResults(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	ex := e.createExam(t)

	testutil.CreateAssignment(t, e.registry, e.teacher.ID, e.math.ID, e.east.ID, true, false)

	t.Run("teacher blocked while draft", func(t *testing.T) {
		_, err := e.svc.SaveResults(ctx, e.teacher, ex.ID, e.math.ID, nil)
		authErr, ok := authz.IsDenial(err)
		require.True(t, ok)
		assert.Equal(t, authz.ReasonExamLocked, authErr.Reason)
	})

	e.setStatus(t, ex.ID, exam.StatusActive)

	t.Run("batch outcomes are independent", func(t *testing.T) {
		rows := []results.ResultRow{
			e.markRow(t, ex.ID, e.s1.ID, 80),
			{StudentID: e.s2.ID}, // no marks, not absent
			{StudentID: e.s3.ID, IsAbsent: true},
		}
		outcomes, err := e.svc.SaveResults(ctx, e.teacher, ex.ID, e.math.ID, rows)
		require.NoError(t, err)
		require.Len(t, outcomes, 3)

		assert.True(t, outcomes[0].OK)
		assert.Equal(t, 80.0, outcomes[0].Total)
		assert.Equal(t, "A", outcomes[0].Grade) // 80 sits on the boundary, higher band wins

		assert.False(t, outcomes[1].OK)
		assert.Contains(t, outcomes[1].Error, "no marks")

		// absent is recorded without banding
		assert.True(t, outcomes[2].OK)
		assert.Zero(t, outcomes[2].Total)
		assert.Empty(t, outcomes[2].Grade)
	})

	t.Run("marks out of range", func(t *testing.T) {
		outcomes, err := e.svc.SaveResults(ctx, e.teacher, ex.ID, e.math.ID,
			[]results.ResultRow{e.markRow(t, ex.ID, e.s2.ID, 150)})
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.False(t, outcomes[0].OK)
		assert.Contains(t, outcomes[0].Error, "out of range")
	})

	t.Run("second save overwrites, never duplicates", func(t *testing.T) {
		_, err := e.svc.SaveResults(ctx, e.teacher, ex.ID, e.math.ID,
			[]results.ResultRow{e.markRow(t, ex.ID, e.s1.ID, 42)})
		require.NoError(t, err)

		res, err := e.repo.FindResult(ctx, ex.ID, e.math.ID, e.s1.ID)
		require.NoError(t, err)
		assert.Equal(t, 42.0, res.TotalMarks)
		assert.Equal(t, "D", res.Grade)

		all, err := e.repo.QueryResults(ctx, ex.ID, e.math.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2) // s1 and the absent s3
	})

	t.Run("unassigned teacher denied", func(t *testing.T) {
		e2 := setup(t)
		ex2 := e2.createExam(t)
		e2.setStatus(t, ex2.ID, exam.StatusActive)

		_, err := e2.svc.SaveResults(ctx, e2.teacher, ex2.ID, e2.math.ID, nil)
		authErr, ok := authz.IsDenial(err)
		require.True(t, ok)
		assert.Equal(t, authz.ReasonNoAssignment, authErr.Reason)
	})
}

func TestService_ResultMutations(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	ex := e.createExam(t)
	e.setStatus(t, ex.ID, exam.StatusActive)

	outcomes, err := e.svc.SaveResults(ctx, e.admin, ex.ID, e.math.ID,
		[]results.ResultRow{e.markRow(t, ex.ID, e.s1.ID, 70)})
	require.NoError(t, err)
	require.True(t, outcomes[0].OK)

	res, err := e.repo.FindResult(ctx, ex.ID, e.math.ID, e.s1.ID)
	require.NoError(t, err)

	t.Run("verify", func(t *testing.T) {
		verified, err := e.svc.VerifyResult(ctx, e.hod, res.ID)
		require.NoError(t, err)
		assert.Equal(t, e.hod.ID, verified.VerifiedBy.String)

		_, err = e.svc.VerifyResult(ctx, e.teacher, res.ID)
		authErr, ok := authz.IsDenial(err)
		require.True(t, ok)
		assert.Equal(t, authz.GateApproveResults, authErr.Gate)
	})

	t.Run("update re-aggregates", func(t *testing.T) {
		updated, err := e.svc.UpdateResult(ctx, e.admin, res.ID, e.markRow(t, ex.ID, e.s1.ID, 55))
		require.NoError(t, err)
		assert.Equal(t, 55.0, updated.TotalMarks)
		assert.Equal(t, "C", updated.Grade)
	})

	t.Run("student sees own result only once published", func(t *testing.T) {
		_, err := e.svc.GetResult(ctx, e.stdUser, res.ID)
		authErr, ok := authz.IsDenial(err)
		require.True(t, ok)
		assert.Equal(t, authz.ReasonExamLocked, authErr.Reason)

		e.setStatus(t, ex.ID, exam.StatusCompleted, exam.StatusPublished)

		got, err := e.svc.GetResult(ctx, e.stdUser, res.ID)
		require.NoError(t, err)
		assert.Equal(t, e.s1.ID, got.StudentID)
	})

	t.Run("frozen once published", func(t *testing.T) {
		_, err := e.svc.UpdateResult(ctx, e.admin, res.ID, e.markRow(t, ex.ID, e.s1.ID, 90))
		assert.Equal(t, exam.ErrResultsFrozen, err)

		assert.Equal(t, exam.ErrResultsFrozen, e.svc.DeleteResult(ctx, e.admin, res.ID))
	})
}

func TestService_DeleteExam(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	t.Run("empty draft", func(t *testing.T) {
		ex := e.createExam(t)
		require.NoError(t, e.svc.DeleteExam(ctx, e.admin, ex.ID))

		_, err := e.svc.GetExam(ctx, e.admin, ex.ID)
		assert.Equal(t, exam.ErrNotFound, err)
	})

	t.Run("draft with results", func(t *testing.T) {
		ex := e.createExam(t)
		// admins may enter while still in draft
		outcomes, err := e.svc.SaveResults(ctx, e.admin, ex.ID, e.math.ID,
			[]results.ResultRow{e.markRow(t, ex.ID, e.s1.ID, 60)})
		require.NoError(t, err)
		require.True(t, outcomes[0].OK)

		assert.Equal(t, exam.ErrExamHasResults, e.svc.DeleteExam(ctx, e.admin, ex.ID))
	})

	t.Run("left draft", func(t *testing.T) {
		ex := e.createExam(t)
		e.setStatus(t, ex.ID, exam.StatusActive)
		assert.Equal(t, exam.ErrExamNotDraft, e.svc.DeleteExam(ctx, e.admin, ex.ID))
	})
}

func TestService_EligibleStudents(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	ex := e.createExam(t)
	e.setStatus(t, ex.ID, exam.StatusActive)

	testutil.CreateAssignment(t, e.registry, e.teacher.ID, e.math.ID, e.east.ID, true, false)

	students, err := e.svc.EligibleStudents(ctx, e.admin, ex.ID, e.math.ID)
	require.NoError(t, err)
	assert.Len(t, students, 3)

	// teachers are narrowed to their assigned streams
	students, err = e.svc.EligibleStudents(ctx, e.teacher, ex.ID, e.math.ID)
	require.NoError(t, err)
	require.Len(t, students, 2)
	for _, std := range students {
		assert.Equal(t, e.east.ID, std.StreamID)
	}
}

func TestService_Statistics(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	ex := e.createExam(t)
	e.setStatus(t, ex.ID, exam.StatusActive)

	rows := []results.ResultRow{
		e.markRow(t, ex.ID, e.s1.ID, 80),
		e.markRow(t, ex.ID, e.s2.ID, 40),
		{StudentID: e.s3.ID, IsAbsent: true},
	}
	outcomes, err := e.svc.SaveResults(ctx, e.admin, ex.ID, e.math.ID, rows)
	require.NoError(t, err)
	for _, out := range outcomes {
		require.True(t, out.OK, out.Error)
	}

	stats, err := e.svc.Statistics(ctx, e.admin, ex.ID)
	require.NoError(t, err)
	require.Contains(t, stats, e.math.ID)

	// the absent student does not count as attempted
	st := stats[e.math.ID]
	assert.Equal(t, 2, st.StudentsAttempted)
	assert.Equal(t, 80.0, st.Highest)
	assert.Equal(t, 40.0, st.Lowest)
	assert.Equal(t, 60.0, st.Average)
	assert.Equal(t, 50.0, st.PassRate) // pass mark is 50; 40 misses it

	t.Run("teacher without the analytics flag", func(t *testing.T) {
		testutil.CreateAssignment(t, e.registry, e.teacher.ID, e.math.ID, e.east.ID, true, false)
		_, err := e.svc.Statistics(ctx, e.teacher, ex.ID)
		authErr, ok := authz.IsDenial(err)
		require.True(t, ok)
		assert.Equal(t, authz.GateViewSubjectAnalytics, authErr.Gate)
	})

	t.Run("hod sees everything", func(t *testing.T) {
		stats, err := e.svc.Statistics(ctx, e.hod, ex.ID)
		require.NoError(t, err)
		assert.Contains(t, stats, e.math.ID)
	})
}

func TestService_ListExams(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	e.createExam(t) // stays in draft
	active := e.createExam(t)
	e.setStatus(t, active.ID, exam.StatusActive)
	published := e.createExam(t)
	e.setStatus(t, published.ID, exam.StatusActive, exam.StatusCompleted, exam.StatusPublished)

	exams, err := e.svc.ListExams(ctx, e.admin, e.sch.ID)
	require.NoError(t, err)
	assert.Len(t, exams, 3)

	// drafts are an admin-only concern
	exams, err = e.svc.ListExams(ctx, e.teacher, e.sch.ID)
	require.NoError(t, err)
	assert.Len(t, exams, 2)

	exams, err = e.svc.ListExams(ctx, e.stdUser, e.sch.ID)
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.True(t, exams[0].IsPublished())
}
