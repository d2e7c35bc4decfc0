package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const DefaultBufferSize = 256

var (
	mQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_events_queued_total", Help: "Events accepted into the in-memory outbox",
	}, []string{"type"})
	mDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_events_dropped_total", Help: "Events dropped because the outbox was full",
	}, []string{"type"})
	mPublishPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_publisher_panics_total", Help: "Publisher panics recovered by the dispatcher",
	})
)

type envelope struct {
	ctx context.Context
	ev  notification.Event
}

// Outbox is a bounded in-memory queue between the scheduler and the live
// update publishers. Publish never blocks; a full queue drops the event.
type Outbox struct {
	log  *zap.Logger
	ch   chan envelope
	pubs []notification.Sink

	once sync.Once
	done chan struct{}
}

func New(size int, log *zap.Logger, pubs ...notification.Sink) *Outbox {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Outbox{
		log:  log.With(zap.String("component", "notify.outbox")),
		ch:   make(chan envelope, size),
		pubs: pubs,
		done: make(chan struct{}),
	}
}

var _ notification.Sink = (*Outbox)(nil)

func (o *Outbox) Publish(ctx context.Context, ev notification.Event) {
	select {
	case o.ch <- envelope{ctx: context.WithoutCancel(ctx), ev: ev}:
		mQueued.WithLabelValues(string(ev.Type)).Inc()
	default:
		mDropped.WithLabelValues(string(ev.Type)).Inc()
		o.log.Warn("outbox full, event dropped", zap.String("type", string(ev.Type)))
	}
}

// Run dispatches queued events to every publisher in order until ctx is done.
// Events still queued at that point are delivered before Run returns.
func (o *Outbox) Run(ctx context.Context) {
	defer o.once.Do(func() { close(o.done) })
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-o.ch:
					o.dispatch(e)
				default:
					return
				}
			}
		case e := <-o.ch:
			o.dispatch(e)
		}
	}
}

// Done is closed once Run has returned.
func (o *Outbox) Done() <-chan struct{} { return o.done }

func (o *Outbox) dispatch(e envelope) {
	for _, p := range o.pubs {
		o.safePublish(p, e)
	}
}

func (o *Outbox) safePublish(p notification.Sink, e envelope) {
	defer func() {
		if r := recover(); r != nil {
			mPublishPanics.Inc()
			o.log.Error("publisher panic", zap.String("type", string(e.ev.Type)), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	p.Publish(e.ctx, e.ev)
}
