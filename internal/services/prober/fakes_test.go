package prober

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/probe"
)

type pingFunc func(ctx context.Context, address string, timeout time.Duration) (time.Duration, error)

func (f pingFunc) Ping(ctx context.Context, address string, timeout time.Duration) (time.Duration, error) {
	return f(ctx, address, timeout)
}

// gauge tracks the peak number of concurrent callers.
type gauge struct {
	cur  atomic.Int32
	peak atomic.Int32
}

func (g *gauge) enter() {
	n := g.cur.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (g *gauge) leave() { g.cur.Add(-1) }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordedBatch struct {
	addresses   []string
	concurrency int
	timeout     time.Duration
	at          time.Time
}

type recordingBatcher struct {
	mu    sync.Mutex
	calls []recordedBatch
	inner Batcher
}

func (r *recordingBatcher) ProbeBatch(ctx context.Context, addresses []string, concurrency int, timeout time.Duration) []probe.Result {
	r.mu.Lock()
	r.calls = append(r.calls, recordedBatch{
		addresses:   append([]string(nil), addresses...),
		concurrency: concurrency,
		timeout:     timeout,
		at:          time.Now(),
	})
	r.mu.Unlock()
	return r.inner.ProbeBatch(ctx, addresses, concurrency, timeout)
}
