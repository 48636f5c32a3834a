// Package inmemdb provides map-backed repositories for tests and local
// development; no persistence, no SQL.
package inmemdb

import (
	"sync"

	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type (
	DB struct {
		user       *userTable
		school     *schoolTable
		assignment *assignmentTable
		exam       *examTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		schools  map[string]*school.School
		streams  map[string]*school.Stream
		subjects map[string]*school.Subject
		students map[string]*school.Student
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*assignment.Assignment
	}

	examTable struct {
		sync.RWMutex
		exams    map[string]*exam.Exam
		settings map[string]*exam.SubjectSetting
		results  map[string]*exam.Result
		gradings map[string]*exam.GradingSystem
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		school: &schoolTable{
			schools:  make(map[string]*school.School),
			streams:  make(map[string]*school.Stream),
			subjects: make(map[string]*school.Subject),
			students: make(map[string]*school.Student),
		},
		assignment: &assignmentTable{table: make(map[string]*assignment.Assignment)},
		exam: &examTable{
			exams:    make(map[string]*exam.Exam),
			settings: make(map[string]*exam.SubjectSetting),
			results:  make(map[string]*exam.Result),
			gradings: make(map[string]*exam.GradingSystem),
		},
	}
	return db, nil
}
