package notification

import (
	"context"
	"errors"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/momentum-academy/portal/core"
	"github.com/momentum-academy/portal/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound = errors.New("notification not found")
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		// MarkNotificationRead flips the read flag; marking an already-read
		// row again is a no-op, not an error.
		MarkNotificationRead(ctx context.Context, id string) (Notification, error)
		CountUnreadByRecipient(ctx context.Context, recipientID string) (int, error)
		// QueryByRecipient returns the recipient's notifications newest first.
		QueryByRecipient(ctx context.Context, recipientID string) ([]Notification, error)
	}

	// UserDirectory is the slice of the user service needed for the
	// email mirror.
	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		Notify(ctx context.Context, recipientID, message, redirectURL string) error
		MarkRead(ctx context.Context, recipientID, id string) (Notification, error)
		CountUnread(ctx context.Context, recipientID string) (int, error)
		List(ctx context.Context, recipientID string) ([]Notification, error)
	}

	service struct {
		repo    Repository
		users   UserDirectory
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	users UserDirectory,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) Service {
	return &service{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *service) Notify(ctx context.Context, recipientID, message, redirectURL string) error {
	n := Notification{
		RecipientID: recipientID,
		Message:     message,
		RedirectURL: redirectURL,
		CreatedAt:   NowFunc().UTC(),
	}
	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return pkgerrors.Wrap(err, "creating notification")
	}

	if svc.conf.Notifications.EmailMirror {
		svc.mirrorToEmail(ctx, n)
	}
	return nil
}

func (svc *service) MarkRead(ctx context.Context, recipientID, id string) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.RecipientID != recipientID {
		return Notification{}, core.NewAuthorizationError("this notification is not addressed to you")
	}
	if n.Read {
		return n, nil
	}
	return svc.repo.MarkNotificationRead(ctx, id)
}

func (svc *service) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.CountUnreadByRecipient(ctx, recipientID)
}

func (svc *service) List(ctx context.Context, recipientID string) ([]Notification, error) {
	return svc.repo.QueryByRecipient(ctx, recipientID)
}

// mirrorToEmail sends a copy of the notification to the recipient's inbox.
// Mail failures are logged and never surfaced to the caller.
func (svc *service) mirrorToEmail(ctx context.Context, n Notification) {
	usr, err := svc.users.GetByID(ctx, n.RecipientID)
	if err != nil {
		svc.logger.Error("looking up notification recipient", err)
		return
	}

	body := n.Message
	if n.RedirectURL != "" {
		body += "\n\n" + svc.conf.FrontendBaseURL + n.RedirectURL
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: svc.conf.AppName + ": " + n.Message,
		Body:    body,
	}
	svc.mailSvc.SendMessages(msg)
}
