package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/outbox"
	"github.com/NordCoder/netwatch/internal/obs"
	"github.com/NordCoder/netwatch/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	mMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_messages_total",
		Help: "Outbox messages by kind and result (delivered, failed, dropped, no_handler).",
	}, []string{"kind", "result"})
	mLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_delivery_lag_seconds",
		Help:    "Time from enqueue in the tick transaction to successful publish.",
		Buckets: []float64{.1, .5, 1, 2, 5, 15, 60, 300},
	})
	mPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_purged_total",
		Help: "Delivered outbox rows deleted after retention.",
	})
	mPassDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_pass_duration_seconds",
		Help:    "Duration of one drain pass over the outbox.",
		Buckets: prometheus.DefBuckets,
	})
)

type Config struct {
	Workers       int
	BatchSize     int
	Interval      time.Duration
	InProgressTTL time.Duration
	// Retention of delivered rows; zero keeps them forever.
	Retention time.Duration
}

const purgeEvery = 10 * time.Minute

func (c Config) withDefaults() Config {
	c.Workers = max(c.Workers, 1)
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.InProgressTTL <= 0 {
		c.InProgressTTL = time.Minute
	}
	return c
}

// Runner relays outbox rows to their handlers. On every interval each worker
// drains batches until one comes back short. Rows whose handler fails stay
// IN_PROGRESS and are picked again after InProgressTTL; rows that can never
// be handled are marked done and counted as dropped.
type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler
	cfg      Config
	now      func() time.Time

	wg sync.WaitGroup
}

func NewOutboxRunner(log *zap.Logger, repo outbox.Repository, dispatch outbox.GlobalHandler, cfg Config) *Runner {
	return &Runner{
		log:      log.With(zap.String("component", "outbox")),
		repo:     repo,
		dispatch: dispatch,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

func (r *Runner) Start(ctx context.Context) {
	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	if p, ok := r.repo.(outbox.Purger); ok && r.cfg.Retention > 0 {
		r.wg.Add(1)
		go r.janitor(ctx, p)
	}
}

// Wait returns once every worker has observed ctx cancellation.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.log.With(zap.Int("worker", id))
	log.Info("outbox worker started", zap.Duration("interval", r.cfg.Interval))
	defer log.Info("outbox worker stopped")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx, log)
		}
	}
}

func (r *Runner) drain(ctx context.Context, log *zap.Logger) {
	start := time.Now()
	defer func() { mPassDur.Observe(time.Since(start).Seconds()) }()

	for ctx.Err() == nil {
		n, err := r.pass(ctx, log)
		if err != nil || n < r.cfg.BatchSize {
			return
		}
	}
}

// pass handles one batch and returns how many rows it picked.
func (r *Runner) pass(ctx context.Context, log *zap.Logger) (int, error) {
	ctx, span := otel.Tracer("netwatch/outbox").Start(ctx, "outbox.pass",
		trace.WithAttributes(attribute.Int("outbox.batch_limit", r.cfg.BatchSize)))
	defer span.End()

	msgs, err := r.repo.PickBatch(ctx, r.cfg.BatchSize, r.cfg.InProgressTTL)
	if err != nil {
		span.RecordError(err)
		obs.WithTrace(ctx, log).Error("outbox pick", zap.Error(err))
		return 0, err
	}
	span.SetAttributes(attribute.Int("outbox.picked", len(msgs)))

	done := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if r.deliver(ctx, m, log) {
			done = append(done, m.IdempotencyKey)
		}
	}
	if len(done) == 0 {
		return len(msgs), nil
	}
	if err := r.repo.MarkSuccess(ctx, done); err != nil {
		span.RecordError(err)
		obs.WithTrace(ctx, log).Error("outbox mark success", zap.Int("keys", len(done)), zap.Error(err))
		return len(msgs), err
	}
	return len(msgs), nil
}

// deliver reports whether m is finished with, either published or dropped.
func (r *Runner) deliver(ctx context.Context, m outbox.Message, log *zap.Logger) bool {
	kind := m.Kind.String()
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": m.Traceparent,
		"tracestate":  m.Tracestate,
		"baggage":     m.Baggage,
	})
	mctx, span := otel.Tracer("netwatch/outbox").Start(parent, "outbox.deliver",
		trace.WithAttributes(
			attribute.String("outbox.key", m.IdempotencyKey),
			attribute.String("outbox.kind", kind),
		),
	)
	defer span.End()
	log = obs.WithTrace(mctx, log).With(zap.String("key", m.IdempotencyKey), zap.String("kind", kind))

	h, err := r.dispatch(m.Kind)
	if err != nil {
		span.RecordError(err)
		mMessages.WithLabelValues(kind, "no_handler").Inc()
		log.Error("outbox no handler", zap.Error(err))
		return false
	}

	switch err := h(mctx, m.Data); {
	case err == nil:
		mMessages.WithLabelValues(kind, "delivered").Inc()
		if !m.CreatedAt.IsZero() {
			mLag.Observe(r.now().Sub(m.CreatedAt).Seconds())
		}
		return true
	case retry.IsPermanent(err):
		span.RecordError(err)
		mMessages.WithLabelValues(kind, "dropped").Inc()
		log.Error("outbox message dropped", zap.Error(err))
		return true
	default:
		span.RecordError(err)
		mMessages.WithLabelValues(kind, "failed").Inc()
		log.Warn("outbox delivery failed", zap.Error(err))
		return false
	}
}

func (r *Runner) janitor(ctx context.Context, p outbox.Purger) {
	defer r.wg.Done()
	ticker := time.NewTicker(purgeEvery)
	defer ticker.Stop()
	for {
		r.purge(ctx, p)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) purge(ctx context.Context, p outbox.Purger) {
	n, err := p.PurgeDelivered(ctx, r.now().Add(-r.cfg.Retention))
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn("outbox purge", zap.Error(err))
		}
		return
	}
	if n > 0 {
		mPurged.Add(float64(n))
		r.log.Info("outbox purged", zap.Int64("rows", n), zap.Duration("retention", r.cfg.Retention))
	}
}
