package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_UserAPI_login(t *testing.T) {
	app := setup(t)

	sch := testutil.CreateSchool(t, schRepo, "Upendo High")
	usr := testutil.CreateUser(t, usrRepo, "Ms Juma", "msjuma", "juma@upendo.test",
		"Sekr3t!", sch.ID, []string{user.RoleTeacher}, true)
	inactive := testutil.CreateUser(t, usrRepo, "Gone", "gone", "gone@upendo.test",
		"Sekr3t!", sch.ID, []string{user.RoleTeacher}, false)

	tests := []httpTest{
		{
			name:     "empty body",
			body:     marchallObj(t, echoapi.LoginRequest{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, echoapi.LoginRequest{Username: "nobody", Password: "pwd"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, echoapi.LoginRequest{Username: inactive.Username, Password: "Sekr3t!"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "login with username",
			body:     marchallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "Sekr3t!"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "login with email",
			body:     marchallObj(t, echoapi.LoginRequest{Username: usr.Email, Password: "Sekr3t!"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != http.StatusOK {
					t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
				}
				var resp echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatal(err)
				}
				if resp.Token == "" {
					t.Error("empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
