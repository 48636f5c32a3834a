package results

import (
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

// ResultRow is one student's entry in a batch save for an (exam, subject).
type ResultRow struct {
	StudentID string `json:"student_id" validate:"required"`
	IsAbsent  bool   `json:"is_absent"`
	// PaperMarks maps paper id to raw marks. Ignored when IsAbsent.
	PaperMarks map[string]null.Float64 `json:"paper_marks"`
}

func (r *ResultRow) Validate() error { return core.Validate.Struct(r) }

// Outcome is the per-student result of a batch save. One student's failure
// never aborts or partially commits another student's row.
type Outcome struct {
	StudentID string `json:"student_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Total     float64 `json:"total_marks,omitempty"`
	Grade     string  `json:"grade,omitempty"`
}

// SubjectStats is a read-only aggregation over a subject's results.
type SubjectStats struct {
	StudentsAttempted int     `json:"students_attempted"`
	Highest           float64 `json:"highest"`
	Lowest            float64 `json:"lowest"`
	Average           float64 `json:"average"`
	PassRate          float64 `json:"pass_rate"`
}
