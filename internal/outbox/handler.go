package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domkafka "github.com/NordCoder/netwatch/internal/domain/kafka"
	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/outbox"
	"github.com/NordCoder/netwatch/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var handlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "outbox_handler_latency_seconds",
	Help:    "Handler latency per kind, retries included.",
	Buckets: []float64{.005, .025, .1, .5, 1, 5, 30, 60},
}, []string{"kind"})

// Routes maps a message kind to the handler that publishes it.
type Routes map[outbox.Kind]outbox.KindHandler

// Global wraps every route with pol and returns the lookup the relay uses.
func (rt Routes) Global(pol retry.Policy) outbox.GlobalHandler {
	wrapped := make(map[outbox.Kind]outbox.KindHandler, len(rt))
	for kind, h := range rt {
		wrapped[kind] = withRetry(kind, h, pol)
	}
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		h, ok := wrapped[kind]
		if !ok {
			return nil, fmt.Errorf("outbox: no route for kind %d (%s)", int(kind), kind)
		}
		return h, nil
	}
}

func withRetry(kind outbox.Kind, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	if pol.Name == "" {
		pol.Name = "outbox_" + kind.String()
	}
	return func(ctx context.Context, data []byte) error {
		start := time.Now()
		defer func() { handlerLatency.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds()) }()
		return retry.Do(ctx, func() error { return h(ctx, data) }, pol)
	}
}

// StatusChanged publishes a JSON-encoded notification.Transition. A payload
// that does not decode is permanent and never retried.
func StatusChanged(pub domkafka.StatusEvents) outbox.KindHandler {
	return func(ctx context.Context, data []byte) error {
		var t notification.Transition
		if err := json.Unmarshal(data, &t); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal transition: %w", err))
		}
		return pub.PublishStatusChanged(ctx, t)
	}
}

// MakeGlobalOutboxHandler routes status transitions to the event bus.
func MakeGlobalOutboxHandler(pub domkafka.StatusEvents, pol retry.Policy) outbox.GlobalHandler {
	return Routes{outbox.KindStatusChanged: StatusChanged(pub)}.Global(pol)
}
