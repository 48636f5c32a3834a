package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, schoolID string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		SchoolID:  schoolID,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateSchool(t *testing.T, repo school.Repository, name string) school.School {
	t.Helper()

	now := time.Now().UTC()
	sch, err := repo.CreateSchool(context.Background(), school.School{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return sch
}

func CreateStream(t *testing.T, repo school.Repository, schoolID, classID, name string) school.Stream {
	t.Helper()

	str, err := repo.CreateStream(context.Background(), school.Stream{
		ID:       uuid.New().String(),
		SchoolID: schoolID,
		ClassID:  classID,
		Name:     name,
	})
	if err != nil {
		t.Fatalf("CreateStream() failed: %v", err)
	}
	return str
}

func CreateSubject(t *testing.T, repo school.Repository, schoolID, name, code string) school.Subject {
	t.Helper()

	sub, err := repo.CreateSubject(context.Background(), school.Subject{
		ID:       uuid.New().String(),
		SchoolID: schoolID,
		Name:     name,
		Code:     code,
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

func CreateStudent(t *testing.T, repo school.Repository, schoolID, streamID, userID, name string) school.Student {
	t.Helper()

	std, err := repo.CreateStudent(context.Background(), school.Student{
		ID:       uuid.New().String(),
		SchoolID: schoolID,
		StreamID: streamID,
		UserID:   userID,
		Name:     name,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

func CreateAssignment(
	t *testing.T,
	registry *assignment.Registry,
	teacherID, subjectID, streamID string,
	canEnter, canAnalytics bool,
) assignment.Assignment {
	t.Helper()

	asg, err := registry.Assign(context.Background(), assignment.NewAssignment{
		TeacherID:        teacherID,
		SubjectID:        subjectID,
		StreamID:         streamID,
		CanEnterResults:  canEnter,
		CanViewAnalytics: canAnalytics,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}

// CreateGradingSystem stores a standard A-E band table for the school.
func CreateGradingSystem(t *testing.T, repo exam.Repository, schoolID string) exam.GradingSystem {
	t.Helper()

	gs, err := repo.CreateGradingSystem(context.Background(), exam.GradingSystem{
		ID:       uuid.New().String(),
		SchoolID: schoolID,
		Name:     "Standard",
		Bands: []exam.GradeBand{
			{Label: "A", LowerBound: 80, UpperBound: 100},
			{Label: "B", LowerBound: 65, UpperBound: 80},
			{Label: "C", LowerBound: 50, UpperBound: 65},
			{Label: "D", LowerBound: 30, UpperBound: 50},
			{Label: "E", LowerBound: 0, UpperBound: 30},
		},
	})
	if err != nil {
		t.Fatalf("CreateGradingSystem() failed: %v", err)
	}
	return gs
}
