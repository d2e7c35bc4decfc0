package prober

import (
	"context"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultBatchBudget = 30 * time.Second
	MaxWorkers         = probe.MaxConcurrency

	ErrMsgBatchTimeout = "timeout during batch probe"
)

type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) probe.Result
}

// BatchProber fans a set of addresses out over a worker pool created for the
// call. Results come back in completion order; positions still outstanding
// when the budget runs out are filled with synthesized error results.
type BatchProber struct {
	Exec   Prober
	Budget time.Duration
	Clock  notification.Clock
	Log    *zap.Logger
}

func NewBatchProber(exec Prober, budget time.Duration, log *zap.Logger) *BatchProber {
	if budget <= 0 {
		budget = DefaultBatchBudget
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchProber{
		Exec:   exec,
		Budget: budget,
		Clock:  systemClock{},
		Log:    log.With(zap.String("component", "prober.batch")),
	}
}

type indexed struct {
	pos int
	res probe.Result
}

func (b *BatchProber) ProbeBatch(ctx context.Context, addresses []string, concurrency int, timeout time.Duration) []probe.Result {
	n := len(addresses)
	if n == 0 {
		return []probe.Result{}
	}
	workers := min(concurrency, n, MaxWorkers)
	if workers < 1 {
		workers = 1
	}

	ctx, span := otel.Tracer("prober").Start(ctx, "prober.batch",
		trace.WithAttributes(
			attribute.Int("batch.size", n),
			attribute.Int("batch.workers", workers),
		),
	)
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	jobs := make(chan int, n)
	for i := range addresses {
		jobs <- i
	}
	close(jobs)

	// buffered to n so workers never block once the collector has given up
	results := make(chan indexed, n)
	for w := 0; w < workers; w++ {
		go func() {
			for pos := range jobs {
				if ctx.Err() != nil {
					return
				}
				results <- indexed{pos: pos, res: b.Exec.Probe(ctx, addresses[pos], timeout)}
			}
		}()
	}

	budget := b.Budget
	if budget <= 0 {
		budget = DefaultBatchBudget
	}
	timer := time.NewTimer(budget)
	defer timer.Stop()

	out := make([]probe.Result, 0, n)
	seen := make([]bool, n)
	msg := ""

collect:
	for len(out) < n {
		select {
		case r := <-results:
			seen[r.pos] = true
			out = append(out, r.res)
		case <-timer.C:
			msg = ErrMsgBatchTimeout
			batchTimeouts.Inc()
			break collect
		case <-ctx.Done():
			msg = ctx.Err().Error()
			break collect
		}
	}

	if missing := n - len(out); missing > 0 {
		at := b.now()
		for pos, ok := range seen {
			if ok {
				continue
			}
			out = append(out, probe.Result{
				Address: addresses[pos],
				Status:  probe.StatusError,
				At:      at,
				Error:   msg,
			})
		}
		batchSynthesized.Add(float64(missing))
		span.SetAttributes(attribute.Int("batch.synthesized", missing))
		b.Log.Warn("batch incomplete",
			zap.Int("size", n), zap.Int("missing", missing), zap.String("reason", msg))
	}
	return out
}

func (b *BatchProber) now() time.Time {
	if b.Clock == nil {
		return time.Now().UTC()
	}
	return b.Clock.Now()
}
