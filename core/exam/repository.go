package exam

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound        = errors.New("exam not found")
	ErrSettingNotFound = errors.New("exam subject setting not found")
	ErrResultNotFound  = errors.New("result not found")
	ErrGradingNotFound = errors.New("grading system not found")

	// ErrStatusConflict is returned by UpdateExamStatus when the stored
	// status no longer matches the expected one, e.g. a concurrent
	// double-publish.
	ErrStatusConflict = errors.New("exam status changed concurrently")
)

type Repository interface {
	// CreateExam persists the exam with all its subject settings and papers
	// in one unit: no partial subject commits.
	CreateExam(ctx context.Context, e Exam, settings []SubjectSetting) (Exam, error)
	GetExamByID(ctx context.Context, id string) (Exam, error)
	QueryExams(ctx context.Context, schoolID string) ([]Exam, error)
	UpdateExam(ctx context.Context, e Exam) (Exam, error)
	// UpdateExamStatus applies from -> to only if the stored status still
	// equals from at write time; otherwise it returns ErrStatusConflict and
	// applies nothing.
	UpdateExamStatus(ctx context.Context, examID string, from, to Status) error
	DeleteExam(ctx context.Context, id string) error

	GetSubjectSetting(ctx context.Context, examID, subjectID string) (SubjectSetting, error)
	QuerySubjectSettings(ctx context.Context, examID string) ([]SubjectSetting, error)

	CountResults(ctx context.Context, examID string) (int, error)
	GetResultByID(ctx context.Context, id string) (Result, error)
	FindResult(ctx context.Context, examID, subjectID, studentID string) (Result, error)
	QueryResults(ctx context.Context, examID, subjectID string) ([]Result, error)
	// UpsertResult writes one student's Result and its PaperResults
	// atomically; concurrent writes to the same (exam, subject, student)
	// resolve last-write-wins at the row level.
	UpsertResult(ctx context.Context, res Result) (Result, error)
	UpdateResult(ctx context.Context, res Result) (Result, error)
	DeleteResult(ctx context.Context, id string) error

	GetGradingSystem(ctx context.Context, id string) (GradingSystem, error)
	CreateGradingSystem(ctx context.Context, gs GradingSystem) (GradingSystem, error)
}
