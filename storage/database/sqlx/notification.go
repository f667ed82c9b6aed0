package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/momentum-academy/portal/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

type dbNotification struct {
	ID          string      `db:"id"`
	RecipientID string      `db:"recipient_id"`
	Message     string      `db:"message"`
	RedirectURL null.String `db:"redirect_url"`
	Read        bool        `db:"read"`
	CreatedAt   null.Time   `db:"created_at"`
}

func (repo *notificationRepository) row(n notification.Notification) dbNotification {
	return dbNotification{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Message:     n.Message,
		RedirectURL: null.NewString(n.RedirectURL, n.RedirectURL != ""),
		Read:        n.Read,
		CreatedAt:   null.NewTime(n.CreatedAt.UTC(), !n.CreatedAt.IsZero()),
	}
}

func (repo *notificationRepository) unrow(n dbNotification) notification.Notification {
	return notification.Notification{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Message:     n.Message,
		RedirectURL: n.RedirectURL.String,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt.Time,
	}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.New().String()
	query := `
INSERT INTO notification (id, recipient_id, message, redirect_url, read, created_at)
VALUES (:id, :recipient_id, :message, :redirect_url, :read, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, repo.row(n)); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	var n dbNotification
	if err := repo.db.GetContext(ctx, &n, `SELECT * FROM notification WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "getting notification")
	}
	return repo.unrow(n), nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	var n dbNotification
	query := `UPDATE notification SET read = TRUE WHERE id = $1 RETURNING *`
	if err := repo.db.GetContext(ctx, &n, query, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "marking notification read")
	}
	return repo.unrow(n), nil
}

func (repo *notificationRepository) CountUnreadByRecipient(ctx context.Context, recipientID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notification WHERE recipient_id = $1 AND NOT read`
	if err := repo.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo *notificationRepository) QueryByRecipient(ctx context.Context, recipientID string) ([]notification.Notification, error) {
	var rows []dbNotification
	query := `SELECT * FROM notification WHERE recipient_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, recipientID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}

	ntfs := make([]notification.Notification, 0, len(rows))
	for _, n := range rows {
		ntfs = append(ntfs, repo.unrow(n))
	}
	return ntfs, nil
}
