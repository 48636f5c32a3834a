package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{name: "draft to active", from: StatusDraft, to: StatusActive},
		{name: "active to completed", from: StatusActive, to: StatusCompleted},
		{name: "completed to published", from: StatusCompleted, to: StatusPublished},
		{name: "no skipping draft to completed", from: StatusDraft, to: StatusCompleted, wantErr: true},
		{name: "no skipping draft to published", from: StatusDraft, to: StatusPublished, wantErr: true},
		{name: "no skipping active to published", from: StatusActive, to: StatusPublished, wantErr: true},
		{name: "no going back active to draft", from: StatusActive, to: StatusDraft, wantErr: true},
		{name: "no going back published to completed", from: StatusPublished, to: StatusCompleted, wantErr: true},
		{name: "published is terminal", from: StatusPublished, to: StatusActive, wantErr: true},
		{name: "self transition", from: StatusActive, to: StatusActive, wantErr: true},
		{name: "unknown target", from: StatusDraft, to: Status("archived"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(tt.from, tt.to)
			if tt.wantErr {
				assert.Equal(t, InvalidTransitionError{From: tt.from, To: tt.to}, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_Status_IsPublished_derived(t *testing.T) {
	for _, st := range AllStatuses {
		e := Exam{Status: st}
		assert.Equal(t, st == StatusPublished, e.IsPublished(), "status %s", st)
	}
}

func Test_Status_AllowsResultEntry(t *testing.T) {
	assert.True(t, StatusDraft.AllowsResultEntry())
	assert.True(t, StatusActive.AllowsResultEntry())
	assert.True(t, StatusCompleted.AllowsResultEntry())
	assert.False(t, StatusPublished.AllowsResultEntry())
}

func Test_CanDelete(t *testing.T) {
	assert.NoError(t, CanDelete(Exam{Status: StatusDraft}, 0))
	assert.Equal(t, ErrExamHasResults, CanDelete(Exam{Status: StatusDraft}, 3))
	assert.Equal(t, ErrExamNotDraft, CanDelete(Exam{Status: StatusActive}, 0))
	assert.Equal(t, ErrExamNotDraft, CanDelete(Exam{Status: StatusPublished}, 0))
}
