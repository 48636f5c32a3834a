package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(_ context.Context, id string) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if sch, ok := repo.db.schools[id]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryAllSchools(context.Context) ([]school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	schools := make([]school.School, 0, len(repo.db.schools))
	for _, sch := range repo.db.schools {
		schools = append(schools, *sch)
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}

func (repo *schoolRepository) CreateStream(_ context.Context, str school.Stream) (school.Stream, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.streams[str.ID] = &str
	return str, nil
}

func (repo *schoolRepository) GetStreamByID(_ context.Context, id string) (school.Stream, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if str, ok := repo.db.streams[id]; ok {
		return *str, nil
	}
	return school.Stream{}, school.ErrStreamNotFound
}

func (repo *schoolRepository) QueryStreams(_ context.Context, schoolID string) ([]school.Stream, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var streams []school.Stream
	for _, str := range repo.db.streams {
		if str.SchoolID == schoolID {
			streams = append(streams, *str)
		}
	}
	sort.Slice(streams, func(i, j int) bool { return streams[i].Name < streams[j].Name })
	return streams, nil
}

func (repo *schoolRepository) CreateSubject(_ context.Context, sub school.Subject) (school.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *schoolRepository) GetSubjectByID(_ context.Context, id string) (school.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if sub, ok := repo.db.subjects[id]; ok {
		return *sub, nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *schoolRepository) QuerySubjects(_ context.Context, schoolID string) ([]school.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subjects []school.Subject
	for _, sub := range repo.db.subjects {
		if sub.SchoolID == schoolID {
			subjects = append(subjects, *sub)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *schoolRepository) CreateStudent(_ context.Context, std school.Student) (school.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.students[std.ID] = &std
	return std, nil
}

func (repo *schoolRepository) GetStudentByID(_ context.Context, id string) (school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if std, ok := repo.db.students[id]; ok {
		return *std, nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) GetStudentByUserID(_ context.Context, userID string) (school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, std := range repo.db.students {
		if std.UserID == userID {
			return *std, nil
		}
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) QueryStudentsByStream(_ context.Context, streamIDs ...string) ([]school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := make(map[string]bool, len(streamIDs))
	for _, id := range streamIDs {
		wanted[id] = true
	}

	var students []school.Student
	for _, std := range repo.db.students {
		if wanted[std.StreamID] {
			students = append(students, *std)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}
