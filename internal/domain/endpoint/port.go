package endpoint

import (
	"context"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/probe"
)

type Repo interface {
	ListActive(ctx context.Context) ([]*Endpoint, error)
	List(ctx context.Context, f Filter) ([]*Endpoint, error)
	CountActive(ctx context.Context) (int, error)
	UpdateStatus(ctx context.Context, id int64, status probe.Status, at time.Time) error
	Upsert(ctx context.Context, e *Endpoint) error
}
