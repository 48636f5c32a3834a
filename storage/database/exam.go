package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/exam"
)

type examRow struct {
	ID               string         `db:"id"`
	SchoolID         string         `db:"school_id"`
	Name             string         `db:"name"`
	ScopeType        string         `db:"scope_type"`
	ClassIDs         pq.StringArray `db:"class_ids"`
	SubjectScopeType string         `db:"subject_scope_type"`
	SubjectIDs       pq.StringArray `db:"subject_ids"`
	Status           string         `db:"exam_status"`
	GradingSystemID  string         `db:"grading_system_id"`
	CreatedBy        string         `db:"created_by"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r examRow) toExam() exam.Exam {
	return exam.Exam{
		ID:               r.ID,
		SchoolID:         r.SchoolID,
		Name:             r.Name,
		ScopeType:        exam.ScopeType(r.ScopeType),
		ClassIDs:         r.ClassIDs,
		SubjectScopeType: exam.SubjectScopeType(r.SubjectScopeType),
		SubjectIDs:       r.SubjectIDs,
		Status:           exam.Status(r.Status),
		GradingSystemID:  r.GradingSystemID,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type subjectSettingRow struct {
	ID         string  `db:"id"`
	ExamID     string  `db:"exam_id"`
	SubjectID  string  `db:"subject_id"`
	TotalMarks float64 `db:"total_marks"`
	PassMark   float64 `db:"pass_mark"`
	HasPapers  bool    `db:"has_papers"`
	PaperCount int     `db:"paper_count"`
}

func (r subjectSettingRow) toSetting() exam.SubjectSetting {
	return exam.SubjectSetting{
		ID:         r.ID,
		ExamID:     r.ExamID,
		SubjectID:  r.SubjectID,
		TotalMarks: r.TotalMarks,
		PassMark:   r.PassMark,
		HasPapers:  r.HasPapers,
		PaperCount: r.PaperCount,
	}
}

type paperRow struct {
	ID               string  `db:"id"`
	SubjectSettingID string  `db:"subject_setting_id"`
	Name             string  `db:"paper_name"`
	Marks            float64 `db:"marks"`
	PassMark         float64 `db:"pass_mark"`
	DurationMinutes  int     `db:"duration_minutes"`
	PercentageWeight float64 `db:"percentage_weight"`
}

func (r paperRow) toPaper() exam.Paper {
	return exam.Paper(r)
}

type resultRow struct {
	ID         string      `db:"id"`
	ExamID     string      `db:"exam_id"`
	SubjectID  string      `db:"subject_id"`
	StudentID  string      `db:"student_id"`
	IsAbsent   bool        `db:"is_absent"`
	EnteredBy  string      `db:"entered_by"`
	VerifiedBy null.String `db:"verified_by"`
	TotalMarks float64     `db:"total_marks"`
	Grade      string      `db:"grade"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (r resultRow) toResult() exam.Result {
	return exam.Result{
		ID:         r.ID,
		ExamID:     r.ExamID,
		SubjectID:  r.SubjectID,
		StudentID:  r.StudentID,
		IsAbsent:   r.IsAbsent,
		EnteredBy:  r.EnteredBy,
		VerifiedBy: r.VerifiedBy,
		TotalMarks: r.TotalMarks,
		Grade:      r.Grade,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type paperResultRow struct {
	ID       string       `db:"id"`
	ResultID string       `db:"result_id"`
	PaperID  string       `db:"paper_id"`
	Marks    null.Float64 `db:"marks"`
	IsAbsent bool         `db:"is_absent"`
}

type gradeBandRow struct {
	GradingSystemID string  `db:"grading_system_id"`
	Label           string  `db:"label"`
	LowerBound      float64 `db:"lower_bound"`
	UpperBound      float64 `db:"upper_bound"`
}

type examRepository struct {
	db *sqlx.DB
}

var _ exam.Repository = (*examRepository)(nil)

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{db: db}
}

func (repo examRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo examRepository) CreateExam(ctx context.Context, e exam.Exam, settings []exam.SubjectSetting) (exam.Exam, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO exam (id, school_id, name, scope_type, class_ids, subject_scope_type, subject_ids,
			                  exam_status, grading_system_id, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		_, err := tx.ExecContext(ctx, query,
			e.ID, e.SchoolID, e.Name, e.ScopeType, pq.Array(e.ClassIDs), e.SubjectScopeType,
			pq.Array(e.SubjectIDs), e.Status, e.GradingSystemID, e.CreatedBy, e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "inserting exam")
		}

		for _, ss := range settings {
			query = `
				INSERT INTO exam_subject_setting (id, exam_id, subject_id, total_marks, pass_mark, has_papers, paper_count)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`
			_, err = tx.ExecContext(ctx, query, ss.ID, ss.ExamID, ss.SubjectID, ss.TotalMarks, ss.PassMark, ss.HasPapers, ss.PaperCount)
			if err != nil {
				return errors.Wrap(err, "inserting subject setting")
			}
			for _, p := range ss.Papers {
				query = `
					INSERT INTO exam_paper (id, subject_setting_id, paper_name, marks, pass_mark, duration_minutes, percentage_weight)
					VALUES ($1, $2, $3, $4, $5, $6, $7)`
				_, err = tx.ExecContext(ctx, query, p.ID, p.SubjectSettingID, p.Name, p.Marks, p.PassMark, p.DurationMinutes, p.PercentageWeight)
				if err != nil {
					return errors.Wrap(err, "inserting paper")
				}
			}
		}
		return nil
	})
	if err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}

func (repo examRepository) GetExamByID(ctx context.Context, id string) (exam.Exam, error) {
	var row examRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM exam WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return exam.Exam{}, exam.ErrNotFound
		}
		return exam.Exam{}, errors.Wrap(err, "querying exam")
	}
	return row.toExam(), nil
}

func (repo examRepository) QueryExams(ctx context.Context, schoolID string) ([]exam.Exam, error) {
	var rows []examRow
	query := `SELECT * FROM exam WHERE school_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	exams := make([]exam.Exam, 0, len(rows))
	for _, row := range rows {
		exams = append(exams, row.toExam())
	}
	return exams, nil
}

func (repo examRepository) UpdateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	e.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE exam
		SET name = $1, scope_type = $2, class_ids = $3, subject_scope_type = $4, subject_ids = $5, updated_at = $6
		WHERE id = $7`
	res, err := repo.db.ExecContext(ctx, query,
		e.Name, e.ScopeType, pq.Array(e.ClassIDs), e.SubjectScopeType, pq.Array(e.SubjectIDs), e.UpdatedAt, e.ID)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "updating exam")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return exam.Exam{}, exam.ErrNotFound
	}
	return e, nil
}

// UpdateExamStatus is the one concurrency-sensitive write: the WHERE clause
// re-checks the expected status so two racing transitions cannot both win.
func (repo examRepository) UpdateExamStatus(ctx context.Context, examID string, from, to exam.Status) error {
	query := `UPDATE exam SET exam_status = $1, updated_at = $2 WHERE id = $3 AND exam_status = $4`
	res, err := repo.db.ExecContext(ctx, query, to, time.Now().UTC(), examID, from)
	if err != nil {
		return errors.Wrap(err, "updating exam status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking affected rows")
	}
	if n == 0 {
		if _, err = repo.GetExamByID(ctx, examID); err != nil {
			return err
		}
		return exam.ErrStatusConflict
	}
	return nil
}

func (repo examRepository) DeleteExam(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM exam WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (repo examRepository) GetSubjectSetting(ctx context.Context, examID, subjectID string) (exam.SubjectSetting, error) {
	var row subjectSettingRow
	query := `SELECT * FROM exam_subject_setting WHERE exam_id = $1 AND subject_id = $2`
	if err := repo.db.GetContext(ctx, &row, query, examID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return exam.SubjectSetting{}, exam.ErrSettingNotFound
		}
		return exam.SubjectSetting{}, errors.Wrap(err, "querying subject setting")
	}
	ss := row.toSetting()
	if err := repo.loadPapers(ctx, &ss); err != nil {
		return exam.SubjectSetting{}, err
	}
	return ss, nil
}

func (repo examRepository) QuerySubjectSettings(ctx context.Context, examID string) ([]exam.SubjectSetting, error) {
	var rows []subjectSettingRow
	query := `SELECT * FROM exam_subject_setting WHERE exam_id = $1 ORDER BY subject_id`
	if err := repo.db.SelectContext(ctx, &rows, query, examID); err != nil {
		return nil, errors.Wrap(err, "querying subject settings")
	}
	settings := make([]exam.SubjectSetting, 0, len(rows))
	for _, row := range rows {
		ss := row.toSetting()
		if err := repo.loadPapers(ctx, &ss); err != nil {
			return nil, err
		}
		settings = append(settings, ss)
	}
	return settings, nil
}

func (repo examRepository) loadPapers(ctx context.Context, ss *exam.SubjectSetting) error {
	if !ss.HasPapers {
		return nil
	}
	var rows []paperRow
	query := `SELECT * FROM exam_paper WHERE subject_setting_id = $1 ORDER BY paper_name`
	if err := repo.db.SelectContext(ctx, &rows, query, ss.ID); err != nil {
		return errors.Wrap(err, "querying papers")
	}
	ss.Papers = make([]exam.Paper, 0, len(rows))
	for _, row := range rows {
		ss.Papers = append(ss.Papers, row.toPaper())
	}
	return nil
}

func (repo examRepository) CountResults(ctx context.Context, examID string) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM exam_result WHERE exam_id = $1`, examID); err != nil {
		return 0, errors.Wrap(err, "counting results")
	}
	return count, nil
}

func (repo examRepository) GetResultByID(ctx context.Context, id string) (exam.Result, error) {
	return repo.getResult(ctx, `SELECT * FROM exam_result WHERE id = $1`, id)
}

func (repo examRepository) FindResult(ctx context.Context, examID, subjectID, studentID string) (exam.Result, error) {
	query := `SELECT * FROM exam_result WHERE exam_id = $1 AND subject_id = $2 AND student_id = $3`
	return repo.getResult(ctx, query, examID, subjectID, studentID)
}

func (repo examRepository) getResult(ctx context.Context, query string, args ...interface{}) (exam.Result, error) {
	var row resultRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return exam.Result{}, exam.ErrResultNotFound
		}
		return exam.Result{}, errors.Wrap(err, "querying result")
	}
	res := row.toResult()
	if err := repo.loadPaperResults(ctx, &res); err != nil {
		return exam.Result{}, err
	}
	return res, nil
}

func (repo examRepository) QueryResults(ctx context.Context, examID, subjectID string) ([]exam.Result, error) {
	var rows []resultRow
	query := `SELECT * FROM exam_result WHERE exam_id = $1 AND subject_id = $2 ORDER BY student_id`
	if err := repo.db.SelectContext(ctx, &rows, query, examID, subjectID); err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	results := make([]exam.Result, 0, len(rows))
	for _, row := range rows {
		res := row.toResult()
		if err := repo.loadPaperResults(ctx, &res); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (repo examRepository) loadPaperResults(ctx context.Context, res *exam.Result) error {
	var rows []paperResultRow
	query := `SELECT * FROM paper_result WHERE result_id = $1 ORDER BY paper_id`
	if err := repo.db.SelectContext(ctx, &rows, query, res.ID); err != nil {
		return errors.Wrap(err, "querying paper results")
	}
	res.Papers = make([]exam.PaperResult, 0, len(rows))
	for _, row := range rows {
		res.Papers = append(res.Papers, exam.PaperResult(row))
	}
	return nil
}

func (repo examRepository) UpsertResult(ctx context.Context, res exam.Result) (exam.Result, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		// the unique (exam_id, subject_id, student_id) triple makes concurrent
		// saves for the same student resolve last-write-wins
		query := `
			INSERT INTO exam_result (id, exam_id, subject_id, student_id, is_absent, entered_by, verified_by,
			                         total_marks, grade, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (exam_id, subject_id, student_id) DO UPDATE
			SET is_absent = EXCLUDED.is_absent, entered_by = EXCLUDED.entered_by,
			    total_marks = EXCLUDED.total_marks, grade = EXCLUDED.grade, updated_at = EXCLUDED.updated_at
			RETURNING id`
		var id string
		err := tx.QueryRowxContext(ctx, query,
			res.ID, res.ExamID, res.SubjectID, res.StudentID, res.IsAbsent, res.EnteredBy, res.VerifiedBy,
			res.TotalMarks, res.Grade, res.CreatedAt, res.UpdatedAt,
		).Scan(&id)
		if err != nil {
			return errors.Wrap(err, "upserting result")
		}
		res.ID = id

		if _, err = tx.ExecContext(ctx, `DELETE FROM paper_result WHERE result_id = $1`, id); err != nil {
			return errors.Wrap(err, "clearing paper results")
		}
		for i := range res.Papers {
			pr := &res.Papers[i]
			pr.ResultID = id
			query = `INSERT INTO paper_result (id, result_id, paper_id, marks, is_absent) VALUES ($1, $2, $3, $4, $5)`
			if _, err = tx.ExecContext(ctx, query, pr.ID, pr.ResultID, pr.PaperID, pr.Marks, pr.IsAbsent); err != nil {
				return errors.Wrap(err, "inserting paper result")
			}
		}
		return nil
	})
	if err != nil {
		return exam.Result{}, err
	}
	return res, nil
}

func (repo examRepository) UpdateResult(ctx context.Context, res exam.Result) (exam.Result, error) {
	res.UpdatedAt = time.Now().UTC()
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE exam_result
			SET is_absent = $1, entered_by = $2, verified_by = $3, total_marks = $4, grade = $5, updated_at = $6
			WHERE id = $7`
		r, err := tx.ExecContext(ctx, query,
			res.IsAbsent, res.EnteredBy, res.VerifiedBy, res.TotalMarks, res.Grade, res.UpdatedAt, res.ID)
		if err != nil {
			return errors.Wrap(err, "updating result")
		}
		if n, err := r.RowsAffected(); err == nil && n == 0 {
			return exam.ErrResultNotFound
		}

		if _, err = tx.ExecContext(ctx, `DELETE FROM paper_result WHERE result_id = $1`, res.ID); err != nil {
			return errors.Wrap(err, "clearing paper results")
		}
		for _, pr := range res.Papers {
			query = `INSERT INTO paper_result (id, result_id, paper_id, marks, is_absent) VALUES ($1, $2, $3, $4, $5)`
			if _, err = tx.ExecContext(ctx, query, pr.ID, res.ID, pr.PaperID, pr.Marks, pr.IsAbsent); err != nil {
				return errors.Wrap(err, "inserting paper result")
			}
		}
		return nil
	})
	if err != nil {
		return exam.Result{}, err
	}
	return res, nil
}

func (repo examRepository) DeleteResult(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM exam_result WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting result")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return exam.ErrResultNotFound
	}
	return nil
}

func (repo examRepository) GetGradingSystem(ctx context.Context, id string) (exam.GradingSystem, error) {
	var row struct {
		ID       string `db:"id"`
		SchoolID string `db:"school_id"`
		Name     string `db:"name"`
	}
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM grading_system WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return exam.GradingSystem{}, exam.ErrGradingNotFound
		}
		return exam.GradingSystem{}, errors.Wrap(err, "querying grading system")
	}

	var bands []gradeBandRow
	query := `SELECT * FROM grade_band WHERE grading_system_id = $1 ORDER BY lower_bound`
	if err := repo.db.SelectContext(ctx, &bands, query, id); err != nil {
		return exam.GradingSystem{}, errors.Wrap(err, "querying grade bands")
	}

	gs := exam.GradingSystem{ID: row.ID, SchoolID: row.SchoolID, Name: row.Name}
	gs.Bands = make([]exam.GradeBand, 0, len(bands))
	for _, b := range bands {
		gs.Bands = append(gs.Bands, exam.GradeBand{Label: b.Label, LowerBound: b.LowerBound, UpperBound: b.UpperBound})
	}
	return gs, nil
}

func (repo examRepository) CreateGradingSystem(ctx context.Context, gs exam.GradingSystem) (exam.GradingSystem, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `INSERT INTO grading_system (id, school_id, name) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, query, gs.ID, gs.SchoolID, gs.Name); err != nil {
			return errors.Wrap(err, "inserting grading system")
		}
		for _, b := range gs.Bands {
			query = `INSERT INTO grade_band (grading_system_id, label, lower_bound, upper_bound) VALUES ($1, $2, $3, $4)`
			if _, err := tx.ExecContext(ctx, query, gs.ID, b.Label, b.LowerBound, b.UpperBound); err != nil {
				return errors.Wrap(err, "inserting grade band")
			}
		}
		return nil
	})
	if err != nil {
		return exam.GradingSystem{}, err
	}
	return gs, nil
}
