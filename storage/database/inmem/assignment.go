package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/shule/core/assignment"
)

type assignmentRepository struct {
	db *assignmentTable
}

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment}
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.TeacherID == asg.TeacherID &&
			existing.SubjectID == asg.SubjectID &&
			existing.StreamID == asg.StreamID {
			return assignment.Assignment{}, assignment.ErrExists
		}
	}
	repo.db.table[asg.ID] = &asg
	return asg, nil
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[asg.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	orig.CanEnterResults = asg.CanEnterResults
	orig.CanViewAnalytics = asg.CanViewAnalytics
	orig.UpdatedAt = time.Now().UTC()
	return *orig, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter assignment.QueryFilter) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var asgs []assignment.Assignment
	for _, asg := range repo.db.table {
		if filter.TeacherID != "" && asg.TeacherID != filter.TeacherID {
			continue
		}
		if filter.SubjectID != "" && asg.SubjectID != filter.SubjectID {
			continue
		}
		if filter.StreamID != "" && asg.StreamID != filter.StreamID {
			continue
		}
		asgs = append(asgs, *asg)
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.Before(asgs[j].CreatedAt) })
	return asgs, nil
}
