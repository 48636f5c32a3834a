package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/assignment"
)

type assignmentRow struct {
	ID               string    `db:"id"`
	TeacherID        string    `db:"teacher_id"`
	SubjectID        string    `db:"subject_id"`
	StreamID         string    `db:"stream_id"`
	CanEnterResults  bool      `db:"can_enter_results"`
	CanViewAnalytics bool      `db:"can_view_analytics"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r assignmentRow) toAssignment() assignment.Assignment {
	return assignment.Assignment(r)
}

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	query := `
		INSERT INTO subject_teacher_stream (id, teacher_id, subject_id, stream_id, can_enter_results, can_view_analytics, created_at, updated_at)
		VALUES (:id, :teacher_id, :subject_id, :stream_id, :can_enter_results, :can_view_analytics, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, assignmentRow(asg)); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23505" {
			return assignment.Assignment{}, assignment.ErrExists
		}
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return asg, nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	asg.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE subject_teacher_stream
		SET can_enter_results = :can_enter_results, can_view_analytics = :can_view_analytics, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, assignmentRow(asg))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return asg, nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM subject_teacher_stream WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter) ([]assignment.Assignment, error) {
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TeacherID != "" {
		conds = append(conds, fmt.Sprintf("teacher_id = %s", arg(filter.TeacherID)))
	}
	if filter.SubjectID != "" {
		conds = append(conds, fmt.Sprintf("subject_id = %s", arg(filter.SubjectID)))
	}
	if filter.StreamID != "" {
		conds = append(conds, fmt.Sprintf("stream_id = %s", arg(filter.StreamID)))
	}

	query := `SELECT * FROM subject_teacher_stream`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgs := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, row.toAssignment())
	}
	return asgs, nil
}
