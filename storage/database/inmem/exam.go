package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/exam"
)

type examRepository struct {
	db *examTable
}

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db.exam}
}

func (repo *examRepository) CreateExam(_ context.Context, e exam.Exam, settings []exam.SubjectSetting) (exam.Exam, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.exams[e.ID] = &e
	for _, ss := range settings {
		ss := ss
		ss.Papers = copyPapers(ss.Papers)
		repo.db.settings[ss.ID] = &ss
	}
	return e, nil
}

func (repo *examRepository) GetExamByID(_ context.Context, id string) (exam.Exam, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if e, ok := repo.db.exams[id]; ok {
		return *e, nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) QueryExams(_ context.Context, schoolID string) ([]exam.Exam, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var exams []exam.Exam
	for _, e := range repo.db.exams {
		if e.SchoolID == schoolID {
			exams = append(exams, *e)
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].CreatedAt.After(exams[j].CreatedAt) })
	return exams, nil
}

func (repo *examRepository) UpdateExam(_ context.Context, e exam.Exam) (exam.Exam, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.exams[e.ID]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	orig.Name = e.Name
	orig.ScopeType = e.ScopeType
	orig.ClassIDs = e.ClassIDs
	orig.SubjectScopeType = e.SubjectScopeType
	orig.SubjectIDs = e.SubjectIDs
	orig.UpdatedAt = time.Now().UTC()
	return *orig, nil
}

func (repo *examRepository) UpdateExamStatus(_ context.Context, examID string, from, to exam.Status) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.exams[examID]
	if !ok {
		return exam.ErrNotFound
	}
	if e.Status != from {
		return exam.ErrStatusConflict
	}
	e.Status = to
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *examRepository) DeleteExam(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.exams[id]; !ok {
		return exam.ErrNotFound
	}
	delete(repo.db.exams, id)
	for sid, ss := range repo.db.settings {
		if ss.ExamID == id {
			delete(repo.db.settings, sid)
		}
	}
	for rid, res := range repo.db.results {
		if res.ExamID == id {
			delete(repo.db.results, rid)
		}
	}
	return nil
}

func (repo *examRepository) GetSubjectSetting(_ context.Context, examID, subjectID string) (exam.SubjectSetting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ss := range repo.db.settings {
		if ss.ExamID == examID && ss.SubjectID == subjectID {
			out := *ss
			out.Papers = copyPapers(ss.Papers)
			return out, nil
		}
	}
	return exam.SubjectSetting{}, exam.ErrSettingNotFound
}

func (repo *examRepository) QuerySubjectSettings(_ context.Context, examID string) ([]exam.SubjectSetting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var settings []exam.SubjectSetting
	for _, ss := range repo.db.settings {
		if ss.ExamID == examID {
			out := *ss
			out.Papers = copyPapers(ss.Papers)
			settings = append(settings, out)
		}
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].SubjectID < settings[j].SubjectID })
	return settings, nil
}

func (repo *examRepository) CountResults(_ context.Context, examID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, res := range repo.db.results {
		if res.ExamID == examID {
			count++
		}
	}
	return count, nil
}

func (repo *examRepository) GetResultByID(_ context.Context, id string) (exam.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if res, ok := repo.db.results[id]; ok {
		return copyResult(*res), nil
	}
	return exam.Result{}, exam.ErrResultNotFound
}

func (repo *examRepository) FindResult(_ context.Context, examID, subjectID, studentID string) (exam.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, res := range repo.db.results {
		if res.ExamID == examID && res.SubjectID == subjectID && res.StudentID == studentID {
			return copyResult(*res), nil
		}
	}
	return exam.Result{}, exam.ErrResultNotFound
}

func (repo *examRepository) QueryResults(_ context.Context, examID, subjectID string) ([]exam.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var results []exam.Result
	for _, res := range repo.db.results {
		if res.ExamID == examID && res.SubjectID == subjectID {
			results = append(results, copyResult(*res))
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StudentID < results[j].StudentID })
	return results, nil
}

func (repo *examRepository) UpsertResult(_ context.Context, res exam.Result) (exam.Result, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// the (exam, subject, student) triple is unique; a second save for the
	// same student overwrites the first
	for _, existing := range repo.db.results {
		if existing.ExamID == res.ExamID && existing.SubjectID == res.SubjectID && existing.StudentID == res.StudentID {
			res.ID = existing.ID
			res.CreatedAt = existing.CreatedAt
			break
		}
	}
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	for i := range res.Papers {
		res.Papers[i].ResultID = res.ID
	}

	stored := copyResult(res)
	repo.db.results[res.ID] = &stored
	return res, nil
}

func (repo *examRepository) UpdateResult(_ context.Context, res exam.Result) (exam.Result, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.results[res.ID]
	if !ok {
		return exam.Result{}, exam.ErrResultNotFound
	}
	res.CreatedAt = orig.CreatedAt
	res.UpdatedAt = time.Now().UTC()

	stored := copyResult(res)
	repo.db.results[res.ID] = &stored
	return res, nil
}

func (repo *examRepository) DeleteResult(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.results[id]; !ok {
		return exam.ErrResultNotFound
	}
	delete(repo.db.results, id)
	return nil
}

func (repo *examRepository) GetGradingSystem(_ context.Context, id string) (exam.GradingSystem, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if gs, ok := repo.db.gradings[id]; ok {
		out := *gs
		out.Bands = append([]exam.GradeBand(nil), gs.Bands...)
		return out, nil
	}
	return exam.GradingSystem{}, exam.ErrGradingNotFound
}

func (repo *examRepository) CreateGradingSystem(_ context.Context, gs exam.GradingSystem) (exam.GradingSystem, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := gs
	stored.Bands = append([]exam.GradeBand(nil), gs.Bands...)
	repo.db.gradings[gs.ID] = &stored
	return gs, nil
}

func copyPapers(papers []exam.Paper) []exam.Paper {
	return append([]exam.Paper(nil), papers...)
}

func copyResult(res exam.Result) exam.Result {
	res.Papers = append([]exam.PaperResult(nil), res.Papers...)
	return res
}
