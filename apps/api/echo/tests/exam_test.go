package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/volatiletech/null/v8"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/results"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_ExamAPI(t *testing.T) {
	app := setup(t)

	sch := testutil.CreateSchool(t, schRepo, "Upendo High")
	gs := testutil.CreateGradingSystem(t, examRepo, sch.ID)
	math := testutil.CreateSubject(t, schRepo, sch.ID, "Mathematics", "MATH")
	east := testutil.CreateStream(t, schRepo, sch.ID, "form1", "Form 1 East")

	admin := testutil.CreateUser(t, usrRepo, "Head Admin", "headadmin", "admin@upendo.test",
		"Sekr3t!", sch.ID, []string{user.RoleSchoolAdmin}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Ms Juma", "msjuma", "juma@upendo.test",
		"Sekr3t!", sch.ID, []string{user.RoleTeacher}, true)
	std := testutil.CreateStudent(t, schRepo, sch.ID, east.ID, "", "Asha")

	testutil.CreateAssignment(t, registry, teacher.ID, math.ID, east.ID, true, false)

	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)

	newExamBody := marchallObj(t, exam.NewExam{
		SchoolID:         sch.ID,
		Name:             "Midterm",
		ScopeType:        exam.ScopeAllSchool,
		SubjectScopeType: exam.SubjectScopeSingle,
		GradingSystemID:  gs.ID,
		Settings: []exam.NewSubjectSetting{
			{SubjectID: math.ID, TotalMarks: 100, PassMark: 50},
		},
	})

	t.Run("create: no token", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		}
		req, rec := newRequest(http.MethodPost, "/v1/exams", newExamBody)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("create: teacher forbidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/exams", teacherToken, newExamBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
		var denial struct {
			Gate   string `json:"gate"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &denial); err != nil {
			t.Fatal(err)
		}
		if denial.Gate != "create-exam" || denial.Reason != "WrongRole" {
			t.Errorf("unexpected denial %+v", denial)
		}
	})

	var ex exam.Exam
	t.Run("create: admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/exams", adminToken, newExamBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &ex); err != nil {
			t.Fatal(err)
		}
		if ex.Status != exam.StatusDraft {
			t.Errorf("new exam status = %v; want draft", ex.Status)
		}
	})

	t.Run("publishing a draft is refused", func(t *testing.T) {
		body := marchallObj(t, echoapi.StatusUpdateRequest{Status: "published"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/exams/"+ex.ID+"/status", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v: %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
	})

	t.Run("activate", func(t *testing.T) {
		body := marchallObj(t, echoapi.StatusUpdateRequest{Status: "active"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/exams/"+ex.ID+"/status", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got exam.Exam
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Status != exam.StatusActive {
			t.Errorf("status = %v; want active", got.Status)
		}
	})

	t.Run("save results as assigned teacher", func(t *testing.T) {
		setting, err := examRepo.GetSubjectSetting(context.Background(), ex.ID, math.ID)
		if err != nil {
			t.Fatal(err)
		}
		body := marchallObj(t, echoapi.SaveResultsRequest{
			Rows: []results.ResultRow{
				{
					StudentID:  std.ID,
					PaperMarks: map[string]null.Float64{setting.ID: null.Float64From(76)},
				},
			},
		})
		path := fmt.Sprintf("/v1/exams/%s/subjects/%s/results", ex.ID, math.ID)
		req, rec := newAuthRequest(http.MethodPost, path, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp echoapi.SaveResultsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Outcomes) != 1 || !resp.Outcomes[0].OK {
			t.Fatalf("unexpected outcomes %+v", resp.Outcomes)
		}
		if resp.Outcomes[0].Grade != "B" {
			t.Errorf("grade = %s; want B", resp.Outcomes[0].Grade)
		}
	})

	t.Run("statistics need the analytics flag", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/exams/"+ex.ID+"/statistics", teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v: %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
	})

	t.Run("unknown result", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "result not found"}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/results/nope", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("exam list visibility", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/exams", teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var exams []exam.Exam
		if err := json.Unmarshal(rec.Body.Bytes(), &exams); err != nil {
			t.Fatal(err)
		}
		if len(exams) != 1 {
			t.Errorf("exams = %d; want 1", len(exams))
		}
	})
}
