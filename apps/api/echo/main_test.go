package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/momentum-academy/portal/core/assignment"
	"github.com/momentum-academy/portal/core/doubt"
	"github.com/momentum-academy/portal/core/notification"
	"github.com/momentum-academy/portal/core/performance"
	"github.com/momentum-academy/portal/core/resource"
	"github.com/momentum-academy/portal/core/user"
	emailsvc "github.com/momentum-academy/portal/services/email"
	dummydb "github.com/momentum-academy/portal/storage/database/dummy"
	testutil "github.com/momentum-academy/portal/tests"
)

// apiFixture wires the whole API against a fresh in-memory database.
type apiFixture struct {
	app Server

	usrRepo user.Repository
	asgRepo assignment.Repository
	resRepo resource.Repository

	usrSvc   user.Service
	notifSvc notification.Service

	admin    user.User
	teacher  user.User
	teacher2 user.User
	student  user.User
	student2 user.User
}

func setupAPI(t *testing.T) *apiFixture {
	conf := testutil.NewConfig()
	db := testutil.OpenDB(t)

	usrRepo := dummydb.NewUserRepository(db)
	asgRepo := dummydb.NewAssignmentRepository(db)
	resRepo := dummydb.NewResourceRepository(db)
	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	validate, translator := testutil.NewValidator()

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	notifSvc := notification.NewService(dummydb.NewNotificationRepository(db), usrSvc, mailSvc, conf, logger)
	doubtSvc := doubt.NewService(
		dummydb.NewDoubtRepository(db),
		doubt.NewContextResolver(asgRepo, resRepo),
		notifSvc, validate, logger,
	)
	asgSvc := assignment.NewService(asgRepo, notifSvc, usrRepo, doubtSvc, validate, logger)
	perfSvc := performance.NewService(asgRepo, usrSvc)

	app := NewServer(ServerDeps{
		Conf:            conf,
		Logger:          logger,
		DisableReqLogs:  true,
		UserSvc:         usrSvc,
		AssignmentSvc:   asgSvc,
		DoubtSvc:        doubtSvc,
		NotificationSvc: notifSvc,
		PerformanceSvc:  perfSvc,
		Validate:        validate,
		Translator:      translator,
	})

	return &apiFixture{
		app:      app,
		usrRepo:  usrRepo,
		asgRepo:  asgRepo,
		resRepo:  resRepo,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
		admin:    testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.test", "", user.AdminRoles, "", true),
		teacher:  testutil.CreateUser(t, usrRepo, "Teacher", "teach", "teach@test.test", "", []string{user.RoleTeacher}, "", true),
		teacher2: testutil.CreateUser(t, usrRepo, "Other Teacher", "teach2", "teach2@test.test", "", []string{user.RoleTeacher}, "", true),
		student:  testutil.CreateUser(t, usrRepo, "Student", "stud", "stud@test.test", "", []string{user.RoleStudent}, "11", true),
		student2: testutil.CreateUser(t, usrRepo, "Classmate", "stud2", "stud2@test.test", "", []string{user.RoleStudent}, "11", true),
	}
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do performs a request against the app and returns the recorder.
func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.app.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decoding response %q failed: %v", rec.Body.String(), err)
	}
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("code = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

// checkError asserts the {"error": ...} body shape.
func checkError(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, wantError string) {
	t.Helper()
	checkCode(t, rec, wantCode)
	var body map[string]interface{}
	decodeBody(t, rec, &body)
	if got, _ := body["error"].(string); got != wantError {
		t.Errorf("error = %q, want %q", got, wantError)
	}
}

// checkConflict asserts the 409 body carries the machine-readable reason.
func checkConflict(t *testing.T, rec *httptest.ResponseRecorder, wantReason string) {
	t.Helper()
	checkCode(t, rec, http.StatusConflict)
	var body map[string]interface{}
	decodeBody(t, rec, &body)
	if got, _ := body["reason"].(string); got != wantReason {
		t.Errorf("conflict reason = %q, want %q; body: %s", got, wantReason, rec.Body.String())
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Error("conflict body has no error message")
	}
}

func TestHome(t *testing.T) {
	f := setupAPI(t)
	rec := f.do(t, http.MethodGet, "/", "", nil)
	checkCode(t, rec, http.StatusOK)
	if rec.Body.String() != "Welcome to Momentum Academy API!" {
		t.Errorf("home body = %q", rec.Body.String())
	}
}
