package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/jackc/pgx/v5"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

// NotificationRepoImpl keeps the audit trail of e-mails sent by the notifier.
type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifInsert = `
INSERT INTO notifications (endpoint_id, recipient, type, sent_at, payload, transition_at)
VALUES ($1, $2, $3, COALESCE($4, now()), $5, $6)
RETURNING id, sent_at;`

	// column order matches notification.Notification
	qNotifByEndpoint = `
SELECT id, endpoint_id, recipient, type, sent_at, payload, transition_at
FROM notifications
WHERE endpoint_id = $1
ORDER BY sent_at DESC
LIMIT $2;`

	qNotifSent = `
SELECT EXISTS (
    SELECT 1 FROM notifications
    WHERE endpoint_id = $1 AND recipient = $2 AND transition_at = $3
);`
)

// Create records n. A second record for the same transition and recipient
// fails with ErrConflict.
func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qNotifInsert,
		n.EndpointID, n.Recipient, n.Type, nullTime(n.SentAt), n.Payload, n.TransitionAt,
	).Scan(&n.ID, &n.SentAt)
	if err != nil {
		return fmt.Errorf("insert notification for endpoint %d: %w", n.EndpointID, mapPgErr(err))
	}
	return nil
}

func (r *NotificationRepoImpl) ListByEndpoint(ctx context.Context, endpointID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qNotifByEndpoint, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[notification.Notification])
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}
	return out, nil
}

func (r *NotificationRepoImpl) Sent(ctx context.Context, endpointID int64, recipient string, at time.Time) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var ok bool
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qNotifSent, endpointID, recipient, at).Scan(&ok); err != nil {
		return false, fmt.Errorf("notification sent: %w", err)
	}
	return ok, nil
}
