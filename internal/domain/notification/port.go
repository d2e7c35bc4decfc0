package notification

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, n *Notification) error
	ListByEndpoint(ctx context.Context, endpointID int64, limit int) ([]*Notification, error)
	// Sent reports whether recipient was already notified about the
	// transition of endpointID at the given time.
	Sent(ctx context.Context, endpointID int64, recipient string, at time.Time) (bool, error)
}
