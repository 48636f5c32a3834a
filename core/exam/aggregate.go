package exam

import (
	"fmt"
	"math"
	"sort"
)

// IncompleteEntryError is raised when a paper required by the configuration
// has neither marks nor an absence flag. Missing marks are never treated as
// zero; that would silently under-score the student.
type IncompleteEntryError struct {
	PaperID string
	Reason  string
}

func (e IncompleteEntryError) Error() string {
	return fmt.Sprintf("incomplete result entry for paper %s: %s", e.PaperID, e.Reason)
}

// ComputeTotal computes the weighted total for a non-absent student:
// total = sum(paper.marks * paper.percentage_weight / 100), rounded to 2dp.
// Every paper in the configuration must have a corresponding entry with
// numeric marks in [0, paper.Marks].
func ComputeTotal(paperResults []PaperResult, papers []Paper) (float64, error) {
	byPaper := make(map[string]PaperResult, len(paperResults))
	for _, pr := range paperResults {
		byPaper[pr.PaperID] = pr
	}

	var total float64
	for _, p := range papers {
		pr, ok := byPaper[p.ID]
		if !ok {
			return 0, IncompleteEntryError{PaperID: p.ID, Reason: "no entry"}
		}
		if pr.IsAbsent || !pr.Marks.Valid {
			return 0, IncompleteEntryError{PaperID: p.ID, Reason: "no marks and not marked absent"}
		}
		marks := pr.Marks.Float64
		if marks < 0 || marks > p.Marks {
			return 0, IncompleteEntryError{
				PaperID: p.ID,
				Reason:  fmt.Sprintf("marks %v out of range [0, %v]", marks, p.Marks),
			}
		}
		total += marks * p.PercentageWeight / 100
	}
	return round2(total), nil
}

// GradeFor maps a computed total to a letter grade. Bands are checked
// high-to-low, inclusive of the lower bound: a total exactly on a boundary
// resolves to the higher band. The band table must have been validated; a
// malformed table raises ErrGradingSystemInvalid rather than guessing.
func GradeFor(total float64, bands []GradeBand) (string, error) {
	if err := ValidateGradingSystem(GradingSystem{Bands: bands}); err != nil {
		return "", err
	}

	sorted := append([]GradeBand(nil), bands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LowerBound > sorted[j].LowerBound })

	for _, b := range sorted {
		if total >= b.LowerBound {
			return b.Label, nil
		}
	}
	// unreachable with a valid table: the lowest band starts at 0
	return "", ErrGradingSystemInvalid
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
