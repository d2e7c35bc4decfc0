package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/endpoint"
	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/outbox"
	"github.com/NordCoder/netwatch/internal/domain/pinglog"
	"github.com/NordCoder/netwatch/internal/domain/probe"
)

type EndpointStore interface {
	ListActive(ctx context.Context) ([]*endpoint.Endpoint, error)
	UpdateStatus(ctx context.Context, id int64, status probe.Status, at time.Time) error
}

type SettingsStore interface {
	GetCurrent(ctx context.Context) (probe.Settings, error)
}

// LogSink writes inside the transaction carried by ctx.
type LogSink interface {
	Append(ctx context.Context, e *pinglog.Entry) error
}

type TransitionJournal interface {
	Enqueue(ctx context.Context, t notification.Transition) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Journal stores transitions in the outbox for downstream delivery.
type Journal struct{ R outbox.Repository }

func (j Journal) Enqueue(ctx context.Context, t notification.Transition) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}
	return j.R.Enqueue(ctx, TransitionKey(t), outbox.KindStatusChanged, data)
}

// TransitionKey is stable for a given endpoint and probe time so a replayed
// tick does not enqueue twice.
func TransitionKey(t notification.Transition) string {
	return fmt.Sprintf("transition:%d:%d", t.EndpointID, t.At.UnixNano())
}
