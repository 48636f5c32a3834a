package results

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/authz"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// Service orchestrates the exam results engine: it authorizes via the
// authz.Engine, validates input against the exam configuration, aggregates
// via the exam package and persists through the exam repository. The
// service is request-scoped and stateless between calls.
type Service struct {
	repo      exam.Repository
	auth      *authz.Engine
	registry  *assignment.Registry
	schoolSvc *school.Service
	usrSvc    user.ServiceInterface
	mailSvc   core.EmailService
	logger    core.Logger
}

func NewService(
	repo exam.Repository,
	auth *authz.Engine,
	registry *assignment.Registry,
	schoolSvc *school.Service,
	usrSvc user.ServiceInterface,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		auth:      auth,
		registry:  registry,
		schoolSvc: schoolSvc,
		usrSvc:    usrSvc,
		mailSvc:   mailSvc,
		logger:    logger,
	}
}

// CreateExam validates the full configuration and persists the exam with
// all its subject settings in one unit. The exam starts in draft.
func (svc *Service) CreateExam(ctx context.Context, actor user.User, ne exam.NewExam) (exam.Exam, error) {
	if err := svc.auth.CanCreateExam(actor, ne.SchoolID); err != nil {
		return exam.Exam{}, err
	}
	if err := ne.Validate(); err != nil {
		return exam.Exam{}, err
	}

	gs, err := svc.repo.GetGradingSystem(ctx, ne.GradingSystemID)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "finding grading system")
	}
	if err = exam.ValidateGradingSystem(gs); err != nil {
		return exam.Exam{}, err
	}

	now := time.Now().UTC()
	ex := exam.Exam{
		ID:               uuid.New().String(),
		SchoolID:         ne.SchoolID,
		Name:             ne.Name,
		ScopeType:        ne.ScopeType,
		ClassIDs:         ne.ClassIDs,
		SubjectScopeType: ne.SubjectScopeType,
		SubjectIDs:       ne.SubjectIDs,
		Status:           exam.StatusDraft,
		GradingSystemID:  ne.GradingSystemID,
		CreatedBy:        actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	settings := make([]exam.SubjectSetting, 0, len(ne.Settings))
	for _, ns := range ne.Settings {
		ss := exam.SubjectSetting{
			ID:         uuid.New().String(),
			ExamID:     ex.ID,
			SubjectID:  ns.SubjectID,
			TotalMarks: ns.TotalMarks,
			PassMark:   ns.PassMark,
			HasPapers:  ns.HasPapers,
			PaperCount: ns.PaperCount,
		}
		for _, np := range ns.Papers {
			ss.Papers = append(ss.Papers, exam.Paper{
				ID:               uuid.New().String(),
				SubjectSettingID: ss.ID,
				Name:             np.Name,
				Marks:            np.Marks,
				PassMark:         np.PassMark,
				DurationMinutes:  np.DurationMinutes,
				PercentageWeight: np.PercentageWeight,
			})
		}
		settings = append(settings, ss)
	}

	return svc.repo.CreateExam(ctx, ex, settings)
}

// GetExam returns the exam if the actor may view it.
func (svc *Service) GetExam(ctx context.Context, actor user.User, examID string) (exam.Exam, error) {
	ex, err := svc.repo.GetExamByID(ctx, examID)
	if err != nil {
		return exam.Exam{}, err
	}
	subjectIDs, err := svc.examSubjectIDs(ctx, ex)
	if err != nil {
		return exam.Exam{}, err
	}
	if err = svc.auth.CanViewExam(ctx, actor, ex, subjectIDs); err != nil {
		return exam.Exam{}, err
	}
	return ex, nil
}

// CreateGradingSystem registers a reusable grade-band table for a school.
func (svc *Service) CreateGradingSystem(ctx context.Context, actor user.User, gs exam.GradingSystem) (exam.GradingSystem, error) {
	if !actor.InSchool(gs.SchoolID) {
		return exam.GradingSystem{}, authz.Error{Gate: authz.GateCreateExam, Reason: authz.ReasonNotInSchool}
	}
	if !actor.IsSchoolAdmin() {
		return exam.GradingSystem{}, authz.Error{Gate: authz.GateCreateExam, Reason: authz.ReasonWrongRole}
	}
	if err := exam.ValidateGradingSystem(gs); err != nil {
		return exam.GradingSystem{}, err
	}
	if gs.ID == "" {
		gs.ID = uuid.New().String()
	}
	return svc.repo.CreateGradingSystem(ctx, gs)
}

// ListExams returns the school's exams visible to the actor: admins see
// everything, teachers see non-drafts, students see only published exams.
func (svc *Service) ListExams(ctx context.Context, actor user.User, schoolID string) ([]exam.Exam, error) {
	if !actor.InSchool(schoolID) {
		return nil, authz.Error{Gate: authz.GateViewExam, Reason: authz.ReasonNotInSchool}
	}
	exams, err := svc.repo.QueryExams(ctx, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	if actor.IsSchoolAdmin() {
		return exams, nil
	}

	visible := make([]exam.Exam, 0, len(exams))
	for _, ex := range exams {
		if actor.IsStudent() && !ex.IsPublished() {
			continue
		}
		if ex.Status == exam.StatusDraft {
			continue
		}
		visible = append(visible, ex)
	}
	return visible, nil
}

// ListResults returns a subject's results for staff who can view the exam.
func (svc *Service) ListResults(ctx context.Context, actor user.User, examID, subjectID string) ([]exam.Result, error) {
	ex, err := svc.repo.GetExamByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err = svc.auth.CanViewExam(ctx, actor, ex, []string{subjectID}); err != nil {
		return nil, err
	}
	return svc.repo.QueryResults(ctx, examID, subjectID)
}

// UpdateExamStatus applies one lifecycle step. The transition is
// conditioned on the stored status still being the one we read: a second
// concurrent publish attempt fails with InvalidTransitionError, it never
// applies twice.
func (svc *Service) UpdateExamStatus(ctx context.Context, actor user.User, examID string, target exam.Status) error {
	ex, err := svc.repo.GetExamByID(ctx, examID)
	if err != nil {
		return err
	}

	if target == exam.StatusPublished {
		err = svc.auth.CanPublishResults(actor, ex)
	} else {
		err = svc.auth.CanUpdateExam(actor, ex)
	}
	if err != nil {
		return err
	}

	if err = exam.Transition(ex.Status, target); err != nil {
		return err
	}
	if err = svc.repo.UpdateExamStatus(ctx, examID, ex.Status, target); err != nil {
		if errors.Cause(err) == exam.ErrStatusConflict {
			return exam.InvalidTransitionError{From: ex.Status, To: target}
		}
		return errors.Wrap(err, "updating exam status")
	}

	if target == exam.StatusPublished {
		svc.notifyPublished(ctx, ex)
	}
	return nil
}

// DeleteExam destroys an exam: draft only, zero results attached.
func (svc *Service) DeleteExam(ctx context.Context, actor user.User, examID string) error {
	ex, err := svc.repo.GetExamByID(ctx, examID)
	if err != nil {
		return err
	}
	if err = svc.auth.CanDeleteExam(actor, ex); err != nil {
		return err
	}
	count, err := svc.repo.CountResults(ctx, examID)
	if err != nil {
		return errors.Wrap(err, "counting results")
	}
	if err = exam.CanDelete(ex, count); err != nil {
		return err
	}
	return svc.repo.DeleteExam(ctx, examID)
}

// SaveResults performs a batch save for one (exam, subject) across many
// students. Authorization is checked once for the subject and applies to
// the whole batch; each student row is then validated, aggregated and
// upserted independently so one malformed row cannot block the rest.
func (svc *Service) SaveResults(ctx context.Context, actor user.User, examID, subjectID string, rows []ResultRow) ([]Outcome, error) {
	ex, err := svc.repo.GetExamByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err = svc.auth.CanEnterResults(ctx, actor, ex, subjectID); err != nil {
		return nil, err
	}

	setting, err := svc.repo.GetSubjectSetting(ctx, examID, subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "finding subject setting")
	}
	gs, err := svc.repo.GetGradingSystem(ctx, ex.GradingSystemID)
	if err != nil {
		return nil, errors.Wrap(err, "finding grading system")
	}

	outcomes := make([]Outcome, 0, len(rows))
	for _, row := range rows {
		outcomes = append(outcomes, svc.saveRow(ctx, actor, ex, setting, gs, row))
	}
	return outcomes, nil
}

// saveRow processes one student independently; failures are reported in the
// outcome, never propagated to the batch.
func (svc *Service) saveRow(
	ctx context.Context,
	actor user.User,
	ex exam.Exam,
	setting exam.SubjectSetting,
	gs exam.GradingSystem,
	row ResultRow,
) Outcome {
	out := Outcome{StudentID: row.StudentID}
	if err := row.Validate(); err != nil {
		out.Error = err.Error()
		return out
	}

	now := time.Now().UTC()
	res := exam.Result{
		ID:        uuid.New().String(),
		ExamID:    ex.ID,
		SubjectID: setting.SubjectID,
		StudentID: row.StudentID,
		IsAbsent:  row.IsAbsent,
		EnteredBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	papers := setting.EffectivePapers()
	if row.IsAbsent {
		// absence is a tri-state outcome, not a score: marks are forced to
		// null and no grade banding happens.
		for _, p := range papers {
			res.Papers = append(res.Papers, exam.PaperResult{
				ID:       uuid.New().String(),
				ResultID: res.ID,
				PaperID:  p.ID,
				Marks:    null.Float64{},
				IsAbsent: true,
			})
		}
	} else {
		for _, p := range papers {
			res.Papers = append(res.Papers, exam.PaperResult{
				ID:       uuid.New().String(),
				ResultID: res.ID,
				PaperID:  p.ID,
				Marks:    row.PaperMarks[p.ID],
			})
		}
		total, err := exam.ComputeTotal(res.Papers, papers)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		grade, err := exam.GradeFor(total, gs.Bands)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		res.TotalMarks = total
		res.Grade = grade
	}

	saved, err := svc.repo.UpsertResult(ctx, res)
	if err != nil {
		svc.logger.Error("upserting result", err, actor)
		out.Error = "could not save result"
		return out
	}
	out.OK = true
	out.Total = saved.TotalMarks
	out.Grade = saved.Grade
	return out
}

// GetResult returns one result if the actor may view it.
func (svc *Service) GetResult(ctx context.Context, actor user.User, resultID string) (exam.Result, error) {
	res, err := svc.repo.GetResultByID(ctx, resultID)
	if err != nil {
		return exam.Result{}, err
	}
	ex, err := svc.repo.GetExamByID(ctx, res.ExamID)
	if err != nil {
		return exam.Result{}, err
	}

	var actorStudentID string
	if actor.IsStudent() {
		if std, err := svc.schoolSvc.GetStudentByUserID(ctx, actor.ID); err == nil {
			actorStudentID = std.ID
		}
	}
	if err = svc.auth.CanViewResult(ctx, actor, ex, res, actorStudentID); err != nil {
		return exam.Result{}, err
	}
	return res, nil
}

// UpdateResult re-enters one student's row. Frozen once published.
func (svc *Service) UpdateResult(ctx context.Context, actor user.User, resultID string, row ResultRow) (exam.Result, error) {
	res, err := svc.repo.GetResultByID(ctx, resultID)
	if err != nil {
		return exam.Result{}, err
	}
	ex, err := svc.repo.GetExamByID(ctx, res.ExamID)
	if err != nil {
		return exam.Result{}, err
	}
	if ex.IsPublished() {
		return exam.Result{}, exam.ErrResultsFrozen
	}
	if err = svc.auth.CanMutateResult(ctx, authz.GateUpdateResult, actor, ex, res); err != nil {
		return exam.Result{}, err
	}

	setting, err := svc.repo.GetSubjectSetting(ctx, ex.ID, res.SubjectID)
	if err != nil {
		return exam.Result{}, errors.Wrap(err, "finding subject setting")
	}
	gs, err := svc.repo.GetGradingSystem(ctx, ex.GradingSystemID)
	if err != nil {
		return exam.Result{}, errors.Wrap(err, "finding grading system")
	}

	row.StudentID = res.StudentID
	out := svc.saveRow(ctx, actor, ex, setting, gs, row)
	if !out.OK {
		return exam.Result{}, core.NewValidationError(errors.New(out.Error))
	}
	return svc.repo.FindResult(ctx, ex.ID, res.SubjectID, res.StudentID)
}

// DeleteResult removes one student's row. Frozen once published.
func (svc *Service) DeleteResult(ctx context.Context, actor user.User, resultID string) error {
	res, err := svc.repo.GetResultByID(ctx, resultID)
	if err != nil {
		return err
	}
	ex, err := svc.repo.GetExamByID(ctx, res.ExamID)
	if err != nil {
		return err
	}
	if ex.IsPublished() {
		return exam.ErrResultsFrozen
	}
	if err = svc.auth.CanMutateResult(ctx, authz.GateDeleteResult, actor, ex, res); err != nil {
		return err
	}
	return svc.repo.DeleteResult(ctx, resultID)
}

// VerifyResult marks a result as verified by a school_admin or hod.
func (svc *Service) VerifyResult(ctx context.Context, actor user.User, resultID string) (exam.Result, error) {
	res, err := svc.repo.GetResultByID(ctx, resultID)
	if err != nil {
		return exam.Result{}, err
	}
	ex, err := svc.repo.GetExamByID(ctx, res.ExamID)
	if err != nil {
		return exam.Result{}, err
	}
	if err = svc.auth.CanVerifyResult(actor, ex); err != nil {
		return exam.Result{}, err
	}

	res.VerifiedBy = null.StringFrom(actor.ID)
	res.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateResult(ctx, res)
}

// EligibleStudents lists the students a result-entry screen should show for
// one (exam, subject), filtered by the actor's stream assignments when the
// actor is a teacher.
func (svc *Service) EligibleStudents(ctx context.Context, actor user.User, examID, subjectID string) ([]school.Student, error) {
	ex, err := svc.repo.GetExamByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err = svc.auth.CanEnterResults(ctx, actor, ex, subjectID); err != nil {
		return nil, err
	}

	scoped, err := svc.scopedStreams(ctx, ex)
	if err != nil {
		return nil, err
	}

	streamIDs := make([]string, 0, len(scoped))
	if actor.IsSchoolAdmin() {
		for _, str := range scoped {
			streamIDs = append(streamIDs, str.ID)
		}
	} else {
		assigned, err := svc.registry.StreamsForSubject(ctx, actor.ID, subjectID)
		if err != nil {
			return nil, errors.Wrap(err, "finding assigned streams")
		}
		inScope := make(map[string]bool, len(scoped))
		for _, str := range scoped {
			inScope[str.ID] = true
		}
		for _, id := range assigned {
			if inScope[id] {
				streamIDs = append(streamIDs, id)
			}
		}
	}
	if len(streamIDs) == 0 {
		return []school.Student{}, nil
	}
	return svc.schoolSvc.QueryStudentsByStream(ctx, streamIDs...)
}

// Statistics aggregates per-subject stats over an exam's results. Absent
// students do not count as attempted. Teachers only get the subjects they
// hold the view_analytics capability for; if none is visible the last
// denial is returned.
func (svc *Service) Statistics(ctx context.Context, actor user.User, examID string) (map[string]SubjectStats, error) {
	ex, err := svc.repo.GetExamByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	settings, err := svc.repo.QuerySubjectSettings(ctx, examID)
	if err != nil {
		return nil, errors.Wrap(err, "querying subject settings")
	}

	var lastDenial error
	stats := make(map[string]SubjectStats, len(settings))
	for _, setting := range settings {
		if err = svc.auth.CanViewAnalytics(ctx, actor, ex.SchoolID, setting.SubjectID); err != nil {
			if _, ok := authz.IsDenial(err); ok {
				lastDenial = err
				continue
			}
			return nil, err
		}
		results, err := svc.repo.QueryResults(ctx, examID, setting.SubjectID)
		if err != nil {
			return nil, errors.Wrap(err, "querying results")
		}

		var st SubjectStats
		var sum float64
		var passed int
		st.Lowest = math.MaxFloat64
		for _, res := range results {
			if res.IsAbsent {
				continue
			}
			st.StudentsAttempted++
			sum += res.TotalMarks
			if res.TotalMarks > st.Highest {
				st.Highest = res.TotalMarks
			}
			if res.TotalMarks < st.Lowest {
				st.Lowest = res.TotalMarks
			}
			if res.TotalMarks >= setting.PassMark {
				passed++
			}
		}
		if st.StudentsAttempted == 0 {
			st.Lowest = 0
		} else {
			st.Average = math.Round(sum/float64(st.StudentsAttempted)*100) / 100
			st.PassRate = math.Round(float64(passed)/float64(st.StudentsAttempted)*10000) / 100
		}
		stats[setting.SubjectID] = st
	}
	if len(stats) == 0 && lastDenial != nil {
		return nil, lastDenial
	}
	return stats, nil
}

// notifyPublished emails the school's admins that results went out.
// Best-effort: failures are logged, never unwound.
func (svc *Service) notifyPublished(ctx context.Context, ex exam.Exam) {
	admins, err := svc.usrSvc.Filter(ctx, user.QueryFilter{
		SchoolID: ex.SchoolID,
		Roles:    []string{user.RoleSchoolAdmin},
	})
	if err != nil {
		svc.logger.Error("finding school admins for publish notice", err)
		return
	}

	to := make([]mail.Address, 0, len(admins))
	for _, adm := range admins {
		if adm.Email != "" {
			to = append(to, mail.Address{Name: adm.Name, Address: adm.Email})
		}
	}
	if len(to) == 0 {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      fmt.Sprintf("Results published: %s", ex.Name),
		TemplateName: "results-published",
		TemplateData: struct{ ExamName string }{ex.Name},
	})
}

func (svc *Service) examSubjectIDs(ctx context.Context, ex exam.Exam) ([]string, error) {
	settings, err := svc.repo.QuerySubjectSettings(ctx, ex.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying subject settings")
	}
	ids := make([]string, 0, len(settings))
	for _, ss := range settings {
		ids = append(ids, ss.SubjectID)
	}
	return ids, nil
}

// scopedStreams resolves the exam's class scope to concrete streams.
func (svc *Service) scopedStreams(ctx context.Context, ex exam.Exam) ([]school.Stream, error) {
	streams, err := svc.schoolSvc.QueryStreams(ctx, ex.SchoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying streams")
	}
	if ex.ScopeType == exam.ScopeAllSchool {
		return streams, nil
	}
	classes := make(map[string]bool, len(ex.ClassIDs))
	for _, id := range ex.ClassIDs {
		classes[id] = true
	}
	scoped := make([]school.Stream, 0, len(streams))
	for _, str := range streams {
		if classes[str.ClassID] {
			scoped = append(scoped, str)
		}
	}
	return scoped, nil
}
