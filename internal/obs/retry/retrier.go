package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt up to Max and spreads the result by
// ±Jitter (0.2 means ±20%).
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(2, float64(max(attempt, 0)))
	if b.Max > 0 {
		d = math.Min(d, float64(b.Max))
	}
	if b.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(d)
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do gives up on it after the
// first attempt regardless of Policy.Retryable and returns it still marked,
// so callers further up can tell it apart with IsPermanent.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err}
}

func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p)
}

type Policy struct {
	Name     string
	Attempts int
	Backoff  Backoff
	// Retryable defaults to "anything but context cancellation".
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_attempts_total",
		Help: "Attempts made inside retry.Do, including the first.",
	}, []string{"name"})
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_outcomes_total",
		Help: "retry.Do results: ok, exhausted, permanent or canceled.",
	}, []string{"name", "outcome"})
	duration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retry_duration_seconds",
		Help:    "Wall time spent inside retry.Do.",
		Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60},
	}, []string{"name"})
)

func defaultRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do calls fn until it succeeds, the policy gives up or ctx is done. The
// last error from fn is returned, or ctx.Err() when cancelled mid-backoff.
func Do(ctx context.Context, fn func() error, p Policy) error {
	name := p.Name
	if name == "" {
		name = "default"
	}
	attempts := max(p.Attempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = defaultRetryable
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExpoJitter{Base: 100 * time.Millisecond, Max: 10 * time.Second}
	}

	start := time.Now()
	span := trace.SpanFromContext(ctx)
	finish := func(outcome string, err error) error {
		outcomesTotal.WithLabelValues(name, outcome).Inc()
		duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		return err
	}

	for i := 0; ; i++ {
		err := fn()
		attemptsTotal.WithLabelValues(name).Inc()
		if err == nil {
			return finish("ok", nil)
		}
		if p.OnAttempt != nil {
			p.OnAttempt(i, err)
		}
		span.AddEvent("retry.attempt", trace.WithAttributes(
			attribute.String("retry.policy", name),
			attribute.Int("retry.attempt", i+1),
			attribute.String("error", err.Error()),
		))

		switch {
		case IsPermanent(err):
			return finish("permanent", err)
		case !retryable(err) || i == attempts-1:
			if p.OnExhaust != nil {
				p.OnExhaust(err)
			}
			return finish("exhausted", err)
		}

		t := time.NewTimer(backoff.Next(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return finish("canceled", ctx.Err())
		case <-t.C:
		}
	}
}
