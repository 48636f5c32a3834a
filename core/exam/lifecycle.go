package exam

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrResultsFrozen is returned on any mutation attempt against a
	// published exam's results, regardless of actor.
	ErrResultsFrozen = errors.New("exam results are frozen: exam is published")

	// ErrExamHasResults blocks deletion of an exam with attached results.
	ErrExamHasResults = errors.New("exam has results attached and cannot be deleted")

	// ErrExamNotDraft blocks deletion once the exam has left draft.
	ErrExamNotDraft = errors.New("exam can only be deleted while in draft")
)

// InvalidTransitionError is returned when a status change is requested out
// of order, backward, or concurrently applied twice.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid exam status transition %s -> %s", e.From, e.To)
}

// next holds the single legal successor of each state. The machine is
// strictly linear: draft -> active -> completed -> published, terminal once
// published.
var next = map[Status]Status{
	StatusDraft:     StatusActive,
	StatusActive:    StatusCompleted,
	StatusCompleted: StatusPublished,
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	return next[from] == to
}

// Transition validates a requested status change. On failure it returns an
// InvalidTransitionError and the caller must leave the status unchanged.
func Transition(from, to Status) error {
	if !to.Valid() || !CanTransition(from, to) {
		return InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// CanDelete reports whether an exam may be destroyed: only while in draft
// and with zero results attached. This is orthogonal to the status machine.
func CanDelete(e Exam, resultCount int) error {
	if e.Status != StatusDraft {
		return ErrExamNotDraft
	}
	if resultCount > 0 {
		return ErrExamHasResults
	}
	return nil
}
