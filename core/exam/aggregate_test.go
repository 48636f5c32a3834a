package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

var kcseBands = []GradeBand{
	{Label: "A", LowerBound: 80, UpperBound: 100},
	{Label: "B", LowerBound: 65, UpperBound: 80},
	{Label: "C", LowerBound: 50, UpperBound: 65},
	{Label: "D", LowerBound: 30, UpperBound: 50},
	{Label: "E", LowerBound: 0, UpperBound: 30},
}

func Test_ComputeTotal(t *testing.T) {
	papers := []Paper{
		{ID: "p1", Marks: 100, PercentageWeight: 60},
		{ID: "p2", Marks: 100, PercentageWeight: 40},
	}

	t.Run("weighted sum", func(t *testing.T) {
		// 80 * 0.6 + 70 * 0.4 = 76.0
		total, err := ComputeTotal([]PaperResult{
			{PaperID: "p1", Marks: null.Float64From(80)},
			{PaperID: "p2", Marks: null.Float64From(70)},
		}, papers)
		require.NoError(t, err)
		assert.Equal(t, 76.0, total)
	})

	t.Run("rounded to 2dp", func(t *testing.T) {
		total, err := ComputeTotal([]PaperResult{
			{PaperID: "p1", Marks: null.Float64From(33.333)},
			{PaperID: "p2", Marks: null.Float64From(66.667)},
		}, papers)
		require.NoError(t, err)
		assert.Equal(t, 46.67, total)
	})

	t.Run("missing paper entry", func(t *testing.T) {
		_, err := ComputeTotal([]PaperResult{
			{PaperID: "p1", Marks: null.Float64From(80)},
		}, papers)
		assert.Equal(t, IncompleteEntryError{PaperID: "p2", Reason: "no entry"}, err)
	})

	t.Run("null marks are not zero", func(t *testing.T) {
		_, err := ComputeTotal([]PaperResult{
			{PaperID: "p1", Marks: null.Float64From(80)},
			{PaperID: "p2"},
		}, papers)
		assert.IsType(t, IncompleteEntryError{}, err)
	})

	t.Run("marks out of range", func(t *testing.T) {
		_, err := ComputeTotal([]PaperResult{
			{PaperID: "p1", Marks: null.Float64From(101)},
			{PaperID: "p2", Marks: null.Float64From(70)},
		}, papers)
		assert.IsType(t, IncompleteEntryError{}, err)

		_, err = ComputeTotal([]PaperResult{
			{PaperID: "p1", Marks: null.Float64From(-1)},
			{PaperID: "p2", Marks: null.Float64From(70)},
		}, papers)
		assert.IsType(t, IncompleteEntryError{}, err)
	})

	t.Run("implicit single paper", func(t *testing.T) {
		ss := SubjectSetting{ID: "ss1", TotalMarks: 100, PassMark: 40}
		implicit := ss.EffectivePapers()
		require.Len(t, implicit, 1)
		assert.Equal(t, 100.0, implicit[0].PercentageWeight)

		total, err := ComputeTotal([]PaperResult{
			{PaperID: implicit[0].ID, Marks: null.Float64From(55)},
		}, implicit)
		require.NoError(t, err)
		assert.Equal(t, 55.0, total)
	})
}

func Test_GradeFor(t *testing.T) {
	tests := []struct {
		total float64
		want  string
	}{
		{total: 100, want: "A"},
		{total: 80, want: "A"}, // boundary resolves to the higher band
		{total: 79.99, want: "B"},
		{total: 65, want: "B"},
		{total: 50, want: "C"},
		{total: 30, want: "D"},
		{total: 29.99, want: "E"},
		{total: 0, want: "E"},
	}
	for _, tt := range tests {
		grade, err := GradeFor(tt.total, kcseBands)
		require.NoError(t, err)
		assert.Equal(t, tt.want, grade, "total %v", tt.total)
	}
}

func Test_GradeFor_invalidTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := GradeFor(50, nil)
		assert.Equal(t, ErrGradingSystemInvalid, err)
	})
	t.Run("gap", func(t *testing.T) {
		_, err := GradeFor(50, []GradeBand{
			{Label: "A", LowerBound: 60, UpperBound: 100},
			{Label: "B", LowerBound: 0, UpperBound: 50},
		})
		assert.Equal(t, ErrGradingSystemInvalid, err)
	})
	t.Run("does not start at zero", func(t *testing.T) {
		_, err := GradeFor(50, []GradeBand{
			{Label: "A", LowerBound: 10, UpperBound: 100},
		})
		assert.Equal(t, ErrGradingSystemInvalid, err)
	})
	t.Run("does not reach 100", func(t *testing.T) {
		_, err := GradeFor(50, []GradeBand{
			{Label: "A", LowerBound: 0, UpperBound: 90},
		})
		assert.Equal(t, ErrGradingSystemInvalid, err)
	})
}
