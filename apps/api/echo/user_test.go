package echoapi

import (
	"net/http"
	"testing"

	"github.com/momentum-academy/portal/core/user"
	testutil "github.com/momentum-academy/portal/tests"
)

func Test_userApi_login(t *testing.T) {
	f := setupAPI(t)
	pwd := "Sup3r$trong"
	usr := testutil.CreateUser(t, f.usrRepo, "Hero", "hero", "hero@test.test", pwd, []string{user.RoleStudent}, "11", true)
	testutil.CreateUser(t, f.usrRepo, "N Dog", "ndog", "ndog@test.test", pwd, []string{user.RoleStudent}, "11", false)

	tests := []struct {
		name     string
		body     LoginRequest
		wantCode int
	}{
		{name: "missing fields", wantCode: http.StatusBadRequest},
		{name: "unknown user", body: LoginRequest{Username: "ghost", Password: pwd}, wantCode: http.StatusBadRequest},
		{name: "wrong password", body: LoginRequest{Username: "hero", Password: "nope nope"}, wantCode: http.StatusBadRequest},
		{name: "deactivated account", body: LoginRequest{Username: "ndog", Password: pwd}, wantCode: http.StatusForbidden},
		{name: "by username", body: LoginRequest{Username: "hero", Password: pwd}, wantCode: http.StatusOK},
		{name: "by email", body: LoginRequest{Username: "hero@test.test", Password: pwd}, wantCode: http.StatusOK},
		{name: "username is case-insensitive", body: LoginRequest{Username: "HERO", Password: pwd}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/users/login", "", tt.body)
			checkCode(t, rec, tt.wantCode)
			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				decodeBody(t, rec, &resp)
				if resp.Token == "" {
					t.Error("login returned an empty token")
				}
			}
		})
	}

	// a fresh token grants access to the user's own detail endpoint
	rec := f.do(t, http.MethodGet, "/v1/users/"+usr.ID, getToken(t, usr), nil)
	checkCode(t, rec, http.StatusOK)

	// someone else's detail endpoint is hidden, not forbidden
	rec = f.do(t, http.MethodGet, "/v1/users/"+f.teacher.ID, getToken(t, usr), nil)
	checkError(t, rec, http.StatusNotFound, "not found")

	// admins see everyone
	rec = f.do(t, http.MethodGet, "/v1/users/"+usr.ID, getToken(t, f.admin), nil)
	checkCode(t, rec, http.StatusOK)
}

func Test_userApi_adminOnly(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/v1/users", "", nil)
	checkError(t, rec, http.StatusUnauthorized, "missing or malformed jwt")

	rec = f.do(t, http.MethodGet, "/v1/users", getToken(t, f.student), nil)
	checkError(t, rec, http.StatusForbidden, "permission denied")

	rec = f.do(t, http.MethodGet, "/v1/users", getToken(t, f.admin), nil)
	checkCode(t, rec, http.StatusOK)

	var users []user.User
	decodeBody(t, rec, &users)
	if len(users) != 5 {
		t.Errorf("query returned %d users, want 5", len(users))
	}
}
