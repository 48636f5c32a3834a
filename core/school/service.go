package school

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound        = errors.New("school not found")
	ErrStreamNotFound  = errors.New("stream not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrStudentNotFound = errors.New("student not found")
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		QueryAllSchools(ctx context.Context) ([]School, error)

		CreateStream(ctx context.Context, str Stream) (Stream, error)
		GetStreamByID(ctx context.Context, id string) (Stream, error)
		QueryStreams(ctx context.Context, schoolID string) ([]Stream, error)

		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		GetSubjectByID(ctx context.Context, id string) (Subject, error)
		QuerySubjects(ctx context.Context, schoolID string) ([]Subject, error)

		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		// GetStudentByUserID resolves the student record linked to a user
		// account, if any.
		GetStudentByUserID(ctx context.Context, userID string) (Student, error)
		// QueryStudentsByStream returns students of the given streams, ordered by name.
		QueryStudentsByStream(ctx context.Context, streamIDs ...string) ([]Student, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type NewSchool struct {
	Name    string `json:"name" validate:"required"`
	Motto   string `json:"motto"`
	Address string `json:"address"`
}

func (ns *NewSchool) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	return core.Validate.Struct(ns)
}

func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	sch := School{
		ID:        uuid.New().String(),
		Name:      ns.Name,
		Motto:     ns.Motto,
		Address:   ns.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSchool(ctx, sch)
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]School, error) {
	return svc.repo.QueryAllSchools(ctx)
}

func (svc *Service) CreateStream(ctx context.Context, str Stream) (Stream, error) {
	if str.ID == "" {
		str.ID = uuid.New().String()
	}
	return svc.repo.CreateStream(ctx, str)
}

func (svc *Service) CreateSubject(ctx context.Context, sub Subject) (Subject, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	return svc.repo.CreateSubject(ctx, sub)
}

func (svc *Service) CreateStudent(ctx context.Context, std Student) (Student, error) {
	if std.ID == "" {
		std.ID = uuid.New().String()
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *Service) GetStream(ctx context.Context, id string) (Stream, error) {
	return svc.repo.GetStreamByID(ctx, id)
}

func (svc *Service) QueryStreams(ctx context.Context, schoolID string) ([]Stream, error) {
	return svc.repo.QueryStreams(ctx, schoolID)
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubjectByID(ctx, id)
}

func (svc *Service) QuerySubjects(ctx context.Context, schoolID string) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, schoolID)
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) GetStudentByUserID(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudentByUserID(ctx, userID)
}

func (svc *Service) QueryStudentsByStream(ctx context.Context, streamIDs ...string) ([]Student, error) {
	return svc.repo.QueryStudentsByStream(ctx, streamIDs...)
}
