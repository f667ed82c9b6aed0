package echoapi

import (
	"net/http"
	"testing"

	"github.com/momentum-academy/portal/core/doubt"
)

func Test_doubtApi_flow(t *testing.T) {
	f := setupAPI(t)
	a := f.createAssignmentAPI(t, newAssignmentBody())
	studToken := getToken(t, f.student)

	rec := f.do(t, http.MethodPost, "/v1/doubts", getToken(t, f.teacher), nil)
	checkError(t, rec, http.StatusForbidden, "permission denied")

	rec = f.do(t, http.MethodPost, "/v1/doubts", studToken, doubt.NewDoubt{
		ContextType: doubt.ContextAssignment,
		ContextID:   "nope",
		Question:    "Lost?",
	})
	checkError(t, rec, http.StatusNotFound, doubt.ErrContextNotFound.Error())

	rec = f.do(t, http.MethodPost, "/v1/doubts", studToken, doubt.NewDoubt{
		ContextType: doubt.ContextAssignment,
		ContextID:   a.ID,
		Question:    "Why does the limit not exist at x=0?",
	})
	checkCode(t, rec, http.StatusCreated)
	var d doubt.Doubt
	decodeBody(t, rec, &d)
	if d.TeacherID != f.teacher.ID || d.ContextTitle != a.Title {
		t.Errorf("doubt = %+v, want context resolved from the assignment", d)
	}

	// the owning teacher sees it incoming, another teacher does not
	rec = f.do(t, http.MethodGet, "/v1/doubts/incoming", getToken(t, f.teacher), nil)
	checkCode(t, rec, http.StatusOK)
	var incoming []doubt.Doubt
	decodeBody(t, rec, &incoming)
	if len(incoming) != 1 {
		t.Errorf("incoming doubts = %d, want 1", len(incoming))
	}
	rec = f.do(t, http.MethodGet, "/v1/doubts/incoming", getToken(t, f.teacher2), nil)
	checkCode(t, rec, http.StatusOK)
	incoming = nil
	decodeBody(t, rec, &incoming)
	if len(incoming) != 0 {
		t.Errorf("other teacher's incoming doubts = %d, want 0", len(incoming))
	}

	// replying is reserved to the addressed teacher
	rec = f.do(t, http.MethodPost, "/v1/doubts/"+d.ID+"/reply", getToken(t, f.teacher2), doubt.ReplyDoubt{Answer: "Mine now."})
	checkCode(t, rec, http.StatusForbidden)

	rec = f.do(t, http.MethodPost, "/v1/doubts/"+d.ID+"/reply", getToken(t, f.teacher), doubt.ReplyDoubt{Answer: "The one-sided limits differ."})
	checkCode(t, rec, http.StatusOK)
	decodeBody(t, rec, &d)
	if !d.Answer.Valid {
		t.Errorf("reply did not set the answer: %+v", d)
	}

	rec = f.do(t, http.MethodPost, "/v1/doubts/"+d.ID+"/reply", getToken(t, f.teacher), doubt.ReplyDoubt{Answer: "Wait, again."})
	checkConflict(t, rec, "AlreadyAnswered")

	// status filter straight from the query string
	rec = f.do(t, http.MethodGet, "/v1/doubts/me?status=resolved", studToken, nil)
	checkCode(t, rec, http.StatusOK)
	var mine []doubt.Doubt
	decodeBody(t, rec, &mine)
	if len(mine) != 1 {
		t.Errorf("resolved doubts = %d, want 1", len(mine))
	}
	rec = f.do(t, http.MethodGet, "/v1/doubts/me?status=pending", studToken, nil)
	checkCode(t, rec, http.StatusOK)
	mine = nil
	decodeBody(t, rec, &mine)
	if len(mine) != 0 {
		t.Errorf("pending doubts = %d, want 0", len(mine))
	}
}
