package prober

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context, address string, timeout time.Duration) (rtt time.Duration, err error)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Executor turns one ping into a probe.Result. It never returns an error:
// silence maps to down, everything else that goes wrong maps to error.
type Executor struct {
	Pinger  Pinger
	Timeout time.Duration
	Clock   notification.Clock
	Log     *zap.Logger
}

func NewExecutor(p Pinger, timeout time.Duration, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		Pinger:  p,
		Timeout: timeout,
		Clock:   systemClock{},
		Log:     log.With(zap.String("component", "prober.executor")),
	}
}

func (e *Executor) Probe(ctx context.Context, address string, timeout time.Duration) (res probe.Result) {
	if timeout <= 0 {
		timeout = e.Timeout
	}
	res = probe.Result{Address: address, Status: probe.StatusUnknown}

	defer func() {
		if r := recover(); r != nil {
			res.Status = probe.StatusError
			res.LatencyMS = nil
			res.Error = fmt.Sprintf("probe panic: %v", r)
			res.At = e.now()
			e.Log.Error("probe panic", zap.String("address", address), zap.Any("panic", r))
		}
		probesTotal.WithLabelValues(string(res.Status)).Inc()
	}()

	rtt, err := e.Pinger.Ping(ctx, address, timeout)
	res.At = e.now()

	switch {
	case err == nil:
		ms := float64(rtt.Microseconds()) / 1000
		res.Status = probe.StatusUp
		res.LatencyMS = &ms
		probeLatency.Observe(rtt.Seconds())
		e.Log.Debug("echo reply", zap.String("address", address), zap.Float64("latency_ms", ms))
	case errors.Is(err, ErrNoReply):
		res.Status = probe.StatusDown
		e.Log.Debug("host down", zap.String("address", address))
	default:
		res.Status = probe.StatusError
		res.Error = err.Error()
		e.Log.Warn("probe failed", zap.String("address", address), zap.Error(err))
	}
	return res
}

func (e *Executor) now() time.Time {
	if e.Clock == nil {
		return time.Now().UTC()
	}
	return e.Clock.Now()
}
