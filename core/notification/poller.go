package notification

import (
	"context"
	"time"

	"github.com/momentum-academy/portal/core"
)

// Snapshot is one poll result: the unread count plus the recipient's
// notifications, newest first.
type Snapshot struct {
	Count         int
	Notifications []Notification
}

// Poller periodically re-fetches a recipient's inbox at a fixed interval.
// Each tick issues a fresh query; nothing is pushed server-side, so a
// notification created right after a tick only shows up on the next one.
type Poller struct {
	svc      Service
	interval time.Duration
	logger   core.Logger
}

func NewPoller(svc Service, conf *core.Config, logger core.Logger) *Poller {
	return &Poller{
		svc:      svc,
		interval: conf.Notifications.PollInterval,
		logger:   logger,
	}
}

// Poll streams snapshots for recipientID until ctx is cancelled. An initial
// snapshot is emitted immediately, then one per interval. Failed fetches are
// logged and skipped; the previous snapshot stays current until the next
// successful tick.
func (p *Poller) Poll(ctx context.Context, recipientID string) <-chan Snapshot {
	snapshots := make(chan Snapshot, 1)

	go func() {
		defer close(snapshots)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.tick(ctx, recipientID, snapshots)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx, recipientID, snapshots)
			}
		}
	}()

	return snapshots
}

func (p *Poller) tick(ctx context.Context, recipientID string, snapshots chan<- Snapshot) {
	count, err := p.svc.CountUnread(ctx, recipientID)
	if err != nil {
		p.logger.Error("polling unread count", err)
		return
	}
	ntfs, err := p.svc.List(ctx, recipientID)
	if err != nil {
		p.logger.Error("polling notifications", err)
		return
	}

	select {
	case snapshots <- Snapshot{Count: count, Notifications: ntfs}:
	case <-ctx.Done():
	default:
		// receiver is behind; drop this snapshot
	}
}
