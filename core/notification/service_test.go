package notification_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/momentum-academy/portal/core"
	"github.com/momentum-academy/portal/core/notification"
	"github.com/momentum-academy/portal/core/user"
	emailsvc "github.com/momentum-academy/portal/services/email"
	dummydb "github.com/momentum-academy/portal/storage/database/dummy"
	testutil "github.com/momentum-academy/portal/tests"
)

type fixture struct {
	svc       notification.Service
	conf      *core.Config
	recipient user.User
}

func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	db := testutil.OpenDB(t)
	usrRepo := dummydb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)

	svc := notification.NewService(dummydb.NewNotificationRepository(db), usrSvc, mailSvc, conf, testutil.NewLogger())
	return &fixture{
		svc:       svc,
		conf:      conf,
		recipient: testutil.CreateUser(t, usrRepo, "Student", "stud", "stud@test.test", "", []string{user.RoleStudent}, "11", true),
	}
}

// mockNow makes every call to NowFunc return a later instant, so creation
// order and timestamp order agree.
func mockNow(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	var calls int
	notification.NowFunc = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	t.Cleanup(func() { notification.NowFunc = time.Now })
}

func Test_service_NotifyAndCount(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	mockNow(t)

	count, err := f.svc.CountUnread(ctx, f.recipient.ID)
	if err != nil {
		t.Fatalf("CountUnread() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("CountUnread() on empty inbox = %d, want 0", count)
	}

	messages := []string{"New Assignment: Limits", "New Assignment: Vectors", "Your doubt was answered: Limits"}
	for _, msg := range messages {
		if err = f.svc.Notify(ctx, f.recipient.ID, msg, "/student/assignments"); err != nil {
			t.Fatalf("Notify() failed: %v", err)
		}
	}
	if err = f.svc.Notify(ctx, "someone-else", "New Submission: Limits", "/teacher/submissions"); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}

	if count, _ = f.svc.CountUnread(ctx, f.recipient.ID); count != len(messages) {
		t.Errorf("CountUnread() = %d, want %d", count, len(messages))
	}

	// newest first, scoped to the recipient
	ntfs, err := f.svc.List(ctx, f.recipient.ID)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(ntfs) != len(messages) {
		t.Fatalf("List() returned %d notifications, want %d", len(ntfs), len(messages))
	}
	for i, n := range ntfs {
		if want := messages[len(messages)-1-i]; n.Message != want {
			t.Errorf("List()[%d].Message = %q, want %q", i, n.Message, want)
		}
		if n.Read {
			t.Errorf("List()[%d] is read, want unread", i)
		}
	}
}

func Test_service_MarkRead(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	mockNow(t)

	for _, msg := range []string{"one", "two"} {
		if err := f.svc.Notify(ctx, f.recipient.ID, msg, ""); err != nil {
			t.Fatalf("Notify() failed: %v", err)
		}
	}
	ntfs, err := f.svc.List(ctx, f.recipient.ID)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	if _, err = f.svc.MarkRead(ctx, f.recipient.ID, "nope"); err != notification.ErrNotFound {
		t.Errorf("MarkRead() on unknown id: error = %v, want ErrNotFound", err)
	}
	if _, err = f.svc.MarkRead(ctx, "someone-else", ntfs[0].ID); err == nil {
		t.Error("MarkRead() by another recipient succeeded, want AuthorizationError")
	} else if _, ok := err.(*core.AuthorizationError); !ok {
		t.Errorf("MarkRead() by another recipient: error = %v, want AuthorizationError", err)
	}

	n, err := f.svc.MarkRead(ctx, f.recipient.ID, ntfs[0].ID)
	if err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	if !n.Read {
		t.Error("MarkRead() did not flip the read flag")
	}
	count, _ := f.svc.CountUnread(ctx, f.recipient.ID)
	if count != 1 {
		t.Errorf("CountUnread() after MarkRead = %d, want 1", count)
	}

	// marking again is a no-op, and the count never dips below the truth
	for i := 0; i < 3; i++ {
		if n, err = f.svc.MarkRead(ctx, f.recipient.ID, ntfs[0].ID); err != nil {
			t.Fatalf("MarkRead() repeat failed: %v", err)
		}
		if !n.Read {
			t.Error("MarkRead() repeat returned an unread notification")
		}
	}
	if count, _ = f.svc.CountUnread(ctx, f.recipient.ID); count != 1 {
		t.Errorf("CountUnread() after repeated MarkRead = %d, want 1", count)
	}

	if _, err = f.svc.MarkRead(ctx, f.recipient.ID, ntfs[1].ID); err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	if count, _ = f.svc.CountUnread(ctx, f.recipient.ID); count != 0 {
		t.Errorf("CountUnread() fully read = %d, want 0", count)
	}
}

func Test_service_emailMirror(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.conf.Notifications.EmailMirror = true
	emailsvc.SentMessages = nil

	if err := f.svc.Notify(ctx, f.recipient.ID, "Your assignment was graded: Limits", "/student/assignments"); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}

	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("mirror sent %d emails, want 1", len(emailsvc.SentMessages))
	}
	msg := emailsvc.SentMessages[0]
	if len(msg.To) != 1 || msg.To[0].Address != f.recipient.Email {
		t.Errorf("mirror recipients = %+v, want the user's address", msg.To)
	}
	if want := f.conf.AppName + ": Your assignment was graded: Limits"; msg.Subject != want {
		t.Errorf("mirror subject = %q, want %q", msg.Subject, want)
	}
	if !strings.Contains(msg.Body, f.conf.FrontendBaseURL+"/student/assignments") {
		t.Errorf("mirror body %q does not link back to the app", msg.Body)
	}

	// an unresolvable recipient only skips the mirror
	emailsvc.SentMessages = nil
	if err := f.svc.Notify(ctx, "ghost", "hello", ""); err != nil {
		t.Fatalf("Notify() for unknown user failed: %v", err)
	}
	if len(emailsvc.SentMessages) != 0 {
		t.Errorf("mirror sent %d emails for an unknown user, want 0", len(emailsvc.SentMessages))
	}
}
