package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

// Kind selects the handler a message is dispatched to.
type Kind int

const (
	KindStatusChanged Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindStatusChanged:
		return "status_changed"
	default:
		return "unknown"
	}
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

// Repository stores messages written in the same transaction as the state
// change they describe. Enqueue joins the caller's transaction when one is
// carried by ctx.
type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)
	MarkSuccess(ctx context.Context, keys []string) error
}

// Purger is implemented by repositories that can drop delivered messages.
type Purger interface {
	PurgeDelivered(ctx context.Context, cutoff time.Time) (int64, error)
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
