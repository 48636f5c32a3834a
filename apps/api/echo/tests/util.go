package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/authz"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/results"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

var (
	usrRepo  user.Repository
	schRepo  school.Repository
	examRepo exam.Repository
	registry *assignment.Registry

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func setup(t *testing.T) Server {
	t.Helper()

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatal(err)
	}
	usrRepo = inmemdb.NewUserRepository(db)
	schRepo = inmemdb.NewSchoolRepository(db)
	examRepo = inmemdb.NewExamRepository(db)
	registry = assignment.NewRegistry(inmemdb.NewAssignmentRepository(db))

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	logger := logsvc.NewTestLogger(log.New(os.Stdout, "API-TEST : ", log.LstdFlags))
	usrSvc := user.NewService(usrRepo, mailSvc)
	schoolSvc := school.NewService(schRepo)
	resultsSvc := results.NewService(
		examRepo, authz.NewEngine(registry), registry, schoolSvc, usrSvc, mailSvc, logger)

	// set up server
	return NewServer(
		&ServerDeps{
			DisableReqLogs: true,
			Logger:         logger,
			UserSvc:        usrSvc,
			SchoolSvc:      schoolSvc,
			Registry:       registry,
			ResultsSvc:     resultsSvc,
		},
	)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
