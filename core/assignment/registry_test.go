package assignment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/assignment"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

func newRegistry(t *testing.T) *assignment.Registry {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)
	return assignment.NewRegistry(inmemdb.NewAssignmentRepository(db))
}

func TestRegistry_Assign(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	asg, err := reg.Assign(ctx, assignment.NewAssignment{
		TeacherID:       "t1",
		SubjectID:       "math",
		StreamID:        "1e",
		CanEnterResults: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, asg.ID)
	assert.True(t, asg.CanEnterResults)
	assert.False(t, asg.CanViewAnalytics)

	// same triple again
	_, err = reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1",
		SubjectID: "math",
		StreamID:  "1e",
	})
	assert.Equal(t, assignment.ErrExists, err)

	// same teacher and subject, different stream is fine
	_, err = reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1",
		SubjectID: "math",
		StreamID:  "1w",
	})
	assert.NoError(t, err)
}

func TestRegistry_HasCapability(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	_, err := reg.Assign(ctx, assignment.NewAssignment{
		TeacherID:        "t1",
		SubjectID:        "math",
		StreamID:         "1e",
		CanEnterResults:  true,
		CanViewAnalytics: false,
	})
	require.NoError(t, err)
	_, err = reg.Assign(ctx, assignment.NewAssignment{
		TeacherID:        "t1",
		SubjectID:        "chem",
		StreamID:         "1e",
		CanViewAnalytics: true,
	})
	require.NoError(t, err)

	tests := []struct {
		name                         string
		teacherID, subjectID, streamID string
		cap                          assignment.Capability
		want                         bool
	}{
		{"granted flag", "t1", "math", "1e", assignment.CapEnterResults, true},
		{"row exists, flag off", "t1", "math", "1e", assignment.CapViewAnalytics, false},
		{"no row for stream", "t1", "math", "1w", assignment.CapEnterResults, false},
		{"no row for teacher", "t2", "math", "1e", assignment.CapEnterResults, false},
		{"view-only row", "t1", "chem", "1e", assignment.CapViewAnalytics, true},
		{"view-only row cannot enter", "t1", "chem", "1e", assignment.CapEnterResults, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := reg.HasCapability(ctx, tt.teacherID, tt.subjectID, tt.streamID, tt.cap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	t.Run("unknown capability", func(t *testing.T) {
		_, err := reg.HasCapability(ctx, "t1", "math", "1e", assignment.Capability("teleport"))
		assert.Equal(t, assignment.UnknownCapabilityError{Capability: "teleport"}, err)
	})
}

func TestRegistry_HasSubjectCapability(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	// enter on one stream only
	_, err := reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1", SubjectID: "math", StreamID: "1e",
	})
	require.NoError(t, err)
	_, err = reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1", SubjectID: "math", StreamID: "1w", CanEnterResults: true,
	})
	require.NoError(t, err)

	ok, err := reg.HasSubjectCapability(ctx, "t1", "math", assignment.CapEnterResults)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.HasSubjectCapability(ctx, "t1", "math", assignment.CapViewAnalytics)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_Revoke(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	asg, err := reg.Assign(ctx, assignment.NewAssignment{
		TeacherID: "t1", SubjectID: "math", StreamID: "1e", CanEnterResults: true,
	})
	require.NoError(t, err)

	require.NoError(t, reg.Revoke(ctx, asg.ID))

	// revocation takes effect immediately
	ok, err := reg.HasCapability(ctx, "t1", "math", "1e", assignment.CapEnterResults)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, assignment.ErrNotFound, reg.Revoke(ctx, asg.ID))
}

func TestRegistry_StreamsAndSubjectsFor(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	seed := []assignment.NewAssignment{
		{TeacherID: "t1", SubjectID: "math", StreamID: "1e", CanEnterResults: true},
		{TeacherID: "t1", SubjectID: "math", StreamID: "1w", CanEnterResults: true},
		{TeacherID: "t1", SubjectID: "chem", StreamID: "1e", CanViewAnalytics: true},
		{TeacherID: "t2", SubjectID: "bio", StreamID: "2e", CanEnterResults: true},
	}
	for _, na := range seed {
		_, err := reg.Assign(ctx, na)
		require.NoError(t, err)
	}

	streams, err := reg.StreamsFor(ctx, "t1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1e", "1w"}, streams)

	streams, err = reg.StreamsForSubject(ctx, "t1", "chem")
	require.NoError(t, err)
	assert.Equal(t, []string{"1e"}, streams)

	subjects, err := reg.SubjectsFor(ctx, "t1", false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"math", "chem"}, subjects)

	subjects, err = reg.SubjectsFor(ctx, "t1", true /* onlyEnterable */)
	require.NoError(t, err)
	assert.Equal(t, []string{"math"}, subjects)

	streams, err = reg.StreamsFor(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, streams)
}
