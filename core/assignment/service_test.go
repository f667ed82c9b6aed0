package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/momentum-academy/portal/core"
	"github.com/momentum-academy/portal/core/assignment"
	"github.com/momentum-academy/portal/core/user"
	dummydb "github.com/momentum-academy/portal/storage/database/dummy"
	testutil "github.com/momentum-academy/portal/tests"
)

type notice struct {
	recipientID string
	message     string
	redirectURL string
}

// notifierRecorder records notifications instead of delivering them.
type notifierRecorder struct {
	sent []notice
}

func (n *notifierRecorder) Notify(_ context.Context, recipientID, message, redirectURL string) error {
	n.sent = append(n.sent, notice{recipientID, message, redirectURL})
	return nil
}

// cascadeRecorder records thread cascade calls.
type cascadeRecorder struct {
	calls [][2]string
}

func (c *cascadeRecorder) DeleteByContext(_ context.Context, contextType, contextID string) error {
	c.calls = append(c.calls, [2]string{contextType, contextID})
	return nil
}

type fixture struct {
	svc      assignment.Service
	repo     assignment.Repository
	notifier *notifierRecorder
	threads  *cascadeRecorder
	teacher  user.User
	student  user.User
}

func setup(t *testing.T) *fixture {
	db := testutil.OpenDB(t)
	usrRepo := dummydb.NewUserRepository(db)
	repo := dummydb.NewAssignmentRepository(db)
	notifier := &notifierRecorder{}
	threads := &cascadeRecorder{}
	validate, _ := testutil.NewValidator()

	svc := assignment.NewService(repo, notifier, usrRepo, threads, validate, testutil.NewLogger())
	return &fixture{
		svc:      svc,
		repo:     repo,
		notifier: notifier,
		threads:  threads,
		teacher:  testutil.CreateUser(t, usrRepo, "Teacher", "teach", "teach@test.test", "", []string{user.RoleTeacher}, "", true),
		student:  testutil.CreateUser(t, usrRepo, "Student", "stud", "stud@test.test", "", []string{user.RoleStudent}, "11", true),
	}
}

func (f *fixture) createAssignment(t *testing.T, na assignment.NewAssignment) assignment.Assignment {
	a, err := f.svc.Create(context.Background(), f.teacher, na)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return a
}

func newAssignment(publish bool) assignment.NewAssignment {
	return assignment.NewAssignment{
		Title:       "Limits & Continuity",
		Subject:     "Maths",
		TargetClass: "11",
		FileURL:     "https://files.test/limits.pdf",
		DueDate:     "2024-01-18",
		Publish:     publish,
	}
}

func mockNow(t *testing.T, instant time.Time) {
	assignment.NowFunc = func() time.Time { return instant }
	t.Cleanup(func() { assignment.NowFunc = time.Now })
}

func TestAssignment_DueDatePassed(t *testing.T) {
	due := time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		due  time.Time
		now  time.Time
		want bool
	}{
		{name: "no due date never passes", now: time.Date(2099, 1, 1, 12, 0, 0, 0, time.UTC)},
		{name: "day before", due: due, now: time.Date(2024, 1, 17, 23, 59, 0, 0, time.UTC)},
		{name: "on the due date", due: due, now: time.Date(2024, 1, 18, 23, 59, 0, 0, time.UTC)},
		{name: "day after", due: due, now: time.Date(2024, 1, 19, 0, 1, 0, 0, time.UTC), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assignment.Assignment{DueDate: tt.due}
			if got := a.DueDatePassed(tt.now); got != tt.want {
				t.Errorf("DueDatePassed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	due := time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)
	a := assignment.Assignment{DueDate: due}
	before := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)
	after := time.Date(2024, 1, 19, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  *assignment.Submission
		now  time.Time
		want assignment.Status
	}{
		{name: "no submission, before due", now: before, want: assignment.StatusPending},
		{name: "no submission, after due", now: after, want: assignment.StatusMissing},
		{name: "submitted", sub: &assignment.Submission{Status: assignment.StatusSubmitted}, now: after, want: assignment.StatusSubmitted},
		{name: "late", sub: &assignment.Submission{Status: assignment.StatusLate}, now: after, want: assignment.StatusLate},
		{name: "graded", sub: &assignment.Submission{Status: assignment.StatusGraded}, now: after, want: assignment.StatusGraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := assignment.DeriveStatus(a, tt.sub, tt.now); got != tt.want {
				t.Errorf("DeriveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_service_Create(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.svc.Create(ctx, f.student, newAssignment(true)); err != nil {
		if _, ok := err.(*core.AuthorizationError); !ok {
			t.Errorf("Create() by student: error = %v, want AuthorizationError", err)
		}
	} else {
		t.Error("Create() by student succeeded, want AuthorizationError")
	}

	if _, err := f.svc.Create(ctx, f.teacher, assignment.NewAssignment{Title: "No subject"}); err == nil {
		t.Error("Create() with missing fields succeeded, want validation error")
	}

	na := newAssignment(true)
	na.DueDate = "18-01-2024"
	if _, err := f.svc.Create(ctx, f.teacher, na); err == nil {
		t.Error("Create() with malformed due date succeeded, want validation error")
	}

	// draft: no announcement
	f.createAssignment(t, newAssignment(false))
	if len(f.notifier.sent) != 0 {
		t.Errorf("Create() draft sent %d notifications, want 0", len(f.notifier.sent))
	}

	// published: every student in the target class is notified
	a := f.createAssignment(t, newAssignment(true))
	if a.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("Create() published sent %d notifications, want 1", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.recipientID != f.student.ID || n.message != "New Assignment: "+a.Title || n.redirectURL != "/student/assignments" {
		t.Errorf("Create() notification = %+v", n)
	}
}

func Test_service_Update_publishAnnouncesOnce(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.createAssignment(t, newAssignment(false))

	publish := true
	if _, err := f.svc.Update(ctx, f.teacher, a.ID, assignment.UpdateAssignment{Publish: &publish}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("first publish sent %d notifications, want 1", len(f.notifier.sent))
	}

	// publishing an already-published assignment does not announce again
	if _, err := f.svc.Update(ctx, f.teacher, a.ID, assignment.UpdateAssignment{Publish: &publish, Title: "Limits II"}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if len(f.notifier.sent) != 1 {
		t.Errorf("re-publish sent %d notifications, want 1", len(f.notifier.sent))
	}

	other := user.User{ID: "other", Roles: []string{user.RoleTeacher}}
	if _, err := f.svc.Update(ctx, other, a.ID, assignment.UpdateAssignment{Title: "Hijack"}); err == nil {
		t.Error("Update() by non-owner succeeded, want AuthorizationError")
	}
}

func Test_service_Submit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	mockNow(t, time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC))

	published := f.createAssignment(t, newAssignment(true))
	draft := f.createAssignment(t, newAssignment(false))
	f.notifier.sent = nil

	if _, err := f.svc.Submit(ctx, f.student, published.ID, "  "); err == nil {
		t.Error("Submit() with blank file URL succeeded, want validation error")
	} else if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Submit() with blank file URL: error = %v, want ValidationError", err)
	}

	if _, err := f.svc.Submit(ctx, f.student, "nope", "https://files.test/answers.pdf"); err != assignment.ErrNotFound {
		t.Errorf("Submit() on unknown assignment: error = %v, want ErrNotFound", err)
	}

	if _, err := f.svc.Submit(ctx, f.student, draft.ID, "https://files.test/answers.pdf"); err == nil {
		t.Error("Submit() on draft succeeded, want validation error")
	}

	sub, err := f.svc.Submit(ctx, f.student, published.ID, "https://files.test/answers.pdf")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if sub.Status != assignment.StatusSubmitted {
		t.Errorf("Submit() status = %v, want %v", sub.Status, assignment.StatusSubmitted)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].recipientID != f.teacher.ID {
		t.Errorf("Submit() notifications = %+v, want 1 to the owner", f.notifier.sent)
	}

	if _, err = f.svc.Submit(ctx, f.student, published.ID, "https://files.test/retake.pdf"); err != assignment.ErrAlreadySubmitted {
		t.Errorf("Submit() twice: error = %v, want ErrAlreadySubmitted", err)
	}
}

// A submission revoked after the due date comes back Late even though the
// original one was on time.
func Test_service_lateAfterRevoke(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	// due 2024-01-18; first submission lands on time
	mockNow(t, time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC))
	a := f.createAssignment(t, newAssignment(true))
	sub, err := f.svc.Submit(ctx, f.student, a.ID, "https://files.test/v1.pdf")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if sub.Status != assignment.StatusSubmitted {
		t.Fatalf("Submit() status = %v, want %v", sub.Status, assignment.StatusSubmitted)
	}

	// revoke and resubmit after the due date
	mockNow(t, time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC))
	if err = f.svc.Revoke(ctx, f.student, a.ID); err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}
	sub, err = f.svc.Submit(ctx, f.student, a.ID, "https://files.test/v2.pdf")
	if err != nil {
		t.Fatalf("Submit() after revoke failed: %v", err)
	}
	if sub.Status != assignment.StatusLate {
		t.Errorf("Submit() after due date status = %v, want %v", sub.Status, assignment.StatusLate)
	}
	if sub.FileURL != "https://files.test/v2.pdf" {
		t.Errorf("Submit() fileURL = %s, want the new file", sub.FileURL)
	}
}

func Test_service_Revoke(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	mockNow(t, time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC))
	a := f.createAssignment(t, newAssignment(true))

	if err := f.svc.Revoke(ctx, f.student, a.ID); err != assignment.ErrSubmissionNotFound {
		t.Errorf("Revoke() without submission: error = %v, want ErrSubmissionNotFound", err)
	}

	sub, err := f.svc.Submit(ctx, f.student, a.ID, "https://files.test/v1.pdf")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err = f.svc.Grade(ctx, f.teacher, sub.ID, assignment.GradeSubmission{Grade: "45/50"}); err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}

	if err = f.svc.Revoke(ctx, f.student, a.ID); err != assignment.ErrAlreadyGraded {
		t.Errorf("Revoke() after grading: error = %v, want ErrAlreadyGraded", err)
	}
}

func Test_service_Grade(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	mockNow(t, time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC))
	a := f.createAssignment(t, newAssignment(true))
	sub, err := f.svc.Submit(ctx, f.student, a.ID, "https://files.test/v1.pdf")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	f.notifier.sent = nil

	if _, err = f.svc.Grade(ctx, f.teacher, "nope", assignment.GradeSubmission{Grade: "45/50"}); err != assignment.ErrSubmissionNotFound {
		t.Errorf("Grade() unknown submission: error = %v, want ErrSubmissionNotFound", err)
	}

	other := user.User{ID: "other", Roles: []string{user.RoleTeacher}}
	if _, err = f.svc.Grade(ctx, other, sub.ID, assignment.GradeSubmission{Grade: "45/50"}); err == nil {
		t.Error("Grade() by non-owner succeeded, want AuthorizationError")
	}

	if _, err = f.svc.Grade(ctx, f.teacher, sub.ID, assignment.GradeSubmission{}); err == nil {
		t.Error("Grade() without a grade succeeded, want validation error")
	}

	graded, err := f.svc.Grade(ctx, f.teacher, sub.ID, assignment.GradeSubmission{Grade: "45/50", Feedback: "Neat work"})
	if err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if graded.Status != assignment.StatusGraded || graded.Grade.String != "45/50" || graded.Feedback.String != "Neat work" {
		t.Errorf("Grade() submission = %+v", graded)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].recipientID != f.student.ID {
		t.Errorf("Grade() notifications = %+v, want 1 to the student", f.notifier.sent)
	}

	// re-grading is allowed and notifies again
	regraded, err := f.svc.Grade(ctx, f.teacher, sub.ID, assignment.GradeSubmission{Grade: "48/50"})
	if err != nil {
		t.Fatalf("Grade() again failed: %v", err)
	}
	if regraded.Grade.String != "48/50" {
		t.Errorf("Grade() again grade = %s, want 48/50", regraded.Grade.String)
	}
	if len(f.notifier.sent) != 2 {
		t.Errorf("Grade() again notifications = %d, want 2", len(f.notifier.sent))
	}

	// admins may grade any submission
	admin := user.User{ID: "root", Roles: []string{user.RoleAdmin}}
	if _, err = f.svc.Grade(ctx, admin, sub.ID, assignment.GradeSubmission{Grade: "50/50"}); err != nil {
		t.Errorf("Grade() by admin failed: %v", err)
	}
}

func Test_service_QueryForStudent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	mockNow(t, time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC))

	open := f.createAssignment(t, newAssignment(true))
	f.createAssignment(t, newAssignment(false)) // draft, invisible

	overdueNA := newAssignment(true)
	overdueNA.Title = "Velocity & Acceleration"
	overdueNA.DueDate = "2024-01-10"
	overdue := f.createAssignment(t, overdueNA)

	otherClassNA := newAssignment(true)
	otherClassNA.TargetClass = "12"
	f.createAssignment(t, otherClassNA)

	if _, err := f.svc.Submit(ctx, f.student, open.ID, "https://files.test/v1.pdf"); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	asgs, err := f.svc.QueryForStudent(ctx, f.student)
	if err != nil {
		t.Fatalf("QueryForStudent() failed: %v", err)
	}
	if len(asgs) != 2 {
		t.Fatalf("QueryForStudent() returned %d assignments, want 2", len(asgs))
	}

	byID := make(map[string]assignment.StudentAssignment, len(asgs))
	for _, sa := range asgs {
		byID[sa.ID] = sa
	}
	if sa := byID[open.ID]; sa.Status != assignment.StatusSubmitted || sa.MyFileURL.String != "https://files.test/v1.pdf" {
		t.Errorf("open assignment view = {status:%v file:%s}", sa.Status, sa.MyFileURL.String)
	}
	if sa := byID[overdue.ID]; sa.Status != assignment.StatusMissing {
		t.Errorf("overdue assignment status = %v, want %v", sa.Status, assignment.StatusMissing)
	}
}

func Test_service_Delete_cascades(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	mockNow(t, time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC))
	a := f.createAssignment(t, newAssignment(true))
	if _, err := f.svc.Submit(ctx, f.student, a.ID, "https://files.test/v1.pdf"); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if err := f.svc.Delete(ctx, f.student, a.ID); err == nil {
		t.Error("Delete() by student succeeded, want AuthorizationError")
	}
	if err := f.svc.Delete(ctx, f.teacher, a.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := f.svc.GetByID(ctx, a.ID); err != assignment.ErrNotFound {
		t.Errorf("GetByID() after delete: error = %v, want ErrNotFound", err)
	}
	if _, err := f.repo.GetSubmission(ctx, a.ID, f.student.ID); err != assignment.ErrSubmissionNotFound {
		t.Errorf("GetSubmission() after delete: error = %v, want ErrSubmissionNotFound", err)
	}
	if len(f.threads.calls) != 1 || f.threads.calls[0] != [2]string{"ASSIGNMENT", a.ID} {
		t.Errorf("Delete() thread cascades = %v, want one for the assignment", f.threads.calls)
	}
}
