package notification

import "time"

// Notification is a single inbox entry for a user. Read state only ever
// moves from false to true; the unread count is always computed from the
// stored rows, never maintained as a separate counter.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	RedirectURL string    `json:"redirect_url"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}
