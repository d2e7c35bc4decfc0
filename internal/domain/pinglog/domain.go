package pinglog

import (
	"context"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/probe"
)

// Entry is the durable record of one probe attempt bound to an endpoint.
type Entry struct {
	ID         int64        `json:"id"`
	EndpointID int64        `json:"endpoint_id"`
	Status     probe.Status `json:"status"`
	LatencyMS  *float64     `json:"latency_ms,omitempty"`
	At         time.Time    `json:"at"`
	Error      string       `json:"error,omitempty"`
}

type Repo interface {
	Append(ctx context.Context, e *Entry) error
	ListByEndpoint(ctx context.Context, endpointID int64, limit int) ([]*Entry, error)
}
