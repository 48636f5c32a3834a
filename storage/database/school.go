package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/school"
)

type schoolRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Motto     null.String `db:"motto"`
	Address   null.String `db:"address"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r schoolRow) toSchool() school.School {
	return school.School{
		ID:        r.ID,
		Name:      r.Name,
		Motto:     r.Motto.String,
		Address:   r.Address.String,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type streamRow struct {
	ID       string `db:"id"`
	SchoolID string `db:"school_id"`
	ClassID  string `db:"class_id"`
	Name     string `db:"name"`
}

func (r streamRow) toStream() school.Stream {
	return school.Stream(r)
}

type subjectRow struct {
	ID           string      `db:"id"`
	SchoolID     string      `db:"school_id"`
	DepartmentID null.String `db:"department_id"`
	Name         string      `db:"name"`
	Code         string      `db:"code"`
}

func (r subjectRow) toSubject() school.Subject {
	return school.Subject{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		DepartmentID: r.DepartmentID.String,
		Name:         r.Name,
		Code:         r.Code,
	}
}

type studentRow struct {
	ID          string      `db:"id"`
	SchoolID    string      `db:"school_id"`
	StreamID    string      `db:"stream_id"`
	UserID      null.String `db:"user_id"`
	Name        string      `db:"name"`
	AdmissionNo string      `db:"admission_no"`
}

func (r studentRow) toStudent() school.Student {
	return school.Student{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		StreamID:    r.StreamID,
		UserID:      r.UserID.String,
		Name:        r.Name,
		AdmissionNo: r.AdmissionNo,
	}
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	query := `
		INSERT INTO school (id, name, motto, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, query, sch.ID, sch.Name, sch.Motto, sch.Address, sch.CreatedAt, sch.UpdatedAt)
	if err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	var row schoolRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM school WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "querying school")
	}
	return row.toSchool(), nil
}

func (repo schoolRepository) QueryAllSchools(ctx context.Context) ([]school.School, error) {
	var rows []schoolRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM school ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, row.toSchool())
	}
	return schools, nil
}

func (repo schoolRepository) CreateStream(ctx context.Context, str school.Stream) (school.Stream, error) {
	query := `INSERT INTO stream (id, school_id, class_id, name) VALUES ($1, $2, $3, $4)`
	if _, err := repo.db.ExecContext(ctx, query, str.ID, str.SchoolID, str.ClassID, str.Name); err != nil {
		return school.Stream{}, errors.Wrap(err, "inserting stream")
	}
	return str, nil
}

func (repo schoolRepository) GetStreamByID(ctx context.Context, id string) (school.Stream, error) {
	var row streamRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM stream WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Stream{}, school.ErrStreamNotFound
		}
		return school.Stream{}, errors.Wrap(err, "querying stream")
	}
	return row.toStream(), nil
}

func (repo schoolRepository) QueryStreams(ctx context.Context, schoolID string) ([]school.Stream, error) {
	var rows []streamRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM stream WHERE school_id = $1 ORDER BY name`, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying streams")
	}
	streams := make([]school.Stream, 0, len(rows))
	for _, row := range rows {
		streams = append(streams, row.toStream())
	}
	return streams, nil
}

func (repo schoolRepository) CreateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	query := `INSERT INTO subject (id, school_id, department_id, name, code) VALUES ($1, $2, $3, $4, $5)`
	deptID := null.NewString(sub.DepartmentID, sub.DepartmentID != "")
	if _, err := repo.db.ExecContext(ctx, query, sub.ID, sub.SchoolID, deptID, sub.Name, sub.Code); err != nil {
		return school.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}

func (repo schoolRepository) GetSubjectByID(ctx context.Context, id string) (school.Subject, error) {
	var row subjectRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM subject WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Subject{}, school.ErrSubjectNotFound
		}
		return school.Subject{}, errors.Wrap(err, "querying subject")
	}
	return row.toSubject(), nil
}

func (repo schoolRepository) QuerySubjects(ctx context.Context, schoolID string) ([]school.Subject, error) {
	var rows []subjectRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM subject WHERE school_id = $1 ORDER BY name`, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]school.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, row.toSubject())
	}
	return subjects, nil
}

func (repo schoolRepository) CreateStudent(ctx context.Context, std school.Student) (school.Student, error) {
	query := `INSERT INTO student (id, school_id, stream_id, user_id, name, admission_no) VALUES ($1, $2, $3, $4, $5, $6)`
	userID := null.NewString(std.UserID, std.UserID != "")
	if _, err := repo.db.ExecContext(ctx, query, std.ID, std.SchoolID, std.StreamID, userID, std.Name, std.AdmissionNo); err != nil {
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo schoolRepository) GetStudentByID(ctx context.Context, id string) (school.Student, error) {
	return repo.getStudent(ctx, `SELECT * FROM student WHERE id = $1`, id)
}

func (repo schoolRepository) GetStudentByUserID(ctx context.Context, userID string) (school.Student, error) {
	return repo.getStudent(ctx, `SELECT * FROM student WHERE user_id = $1`, userID)
}

func (repo schoolRepository) getStudent(ctx context.Context, query string, args ...interface{}) (school.Student, error) {
	var row studentRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return school.Student{}, school.ErrStudentNotFound
		}
		return school.Student{}, errors.Wrap(err, "querying student")
	}
	return row.toStudent(), nil
}

func (repo schoolRepository) QueryStudentsByStream(ctx context.Context, streamIDs ...string) ([]school.Student, error) {
	var rows []studentRow
	query := `SELECT * FROM student WHERE stream_id = ANY($1) ORDER BY name`
	if err := repo.db.SelectContext(ctx, &rows, query, pq.Array(streamIDs)); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toStudent())
	}
	return students, nil
}
