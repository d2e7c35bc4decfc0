package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NordCoder/netwatch/internal/services/scheduler/repo"
	"go.uber.org/zap"
)

var ErrStartFailed = errors.New("scheduler start failed")

type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

type Ticker interface {
	Tick(ctx context.Context) (TickReport, error)
}

type LastTick struct {
	Report TickReport `json:"report"`
	At     time.Time  `json:"at"`
	Error  string     `json:"error,omitempty"`
}

type Status struct {
	State       State      `json:"state"`
	IntervalSec int        `json:"interval_sec,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Last        *LastTick  `json:"last_tick,omitempty"`
}

// Runner owns the periodic loop. At most one ticker exists at a time and at
// most one tick runs at a time; fires that land while a tick is in flight are
// dropped.
type Runner struct {
	Log      *zap.Logger
	UC       Ticker
	Settings repo.SettingsStore

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	interval  time.Duration
	startedAt time.Time
	last      *LastTick

	tickMu sync.Mutex

	newTicker func(d time.Duration) (<-chan time.Time, func())
}

func New(log *zap.Logger, uc Ticker, settings repo.SettingsStore) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		Log:       log.With(zap.String("component", "scheduler")),
		UC:        uc,
		Settings:  settings,
		newTicker: stdTicker,
	}
}

func stdTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start loads the current interval, arms the ticker and runs the first tick
// before returning. The loop outlives ctx; only Stop ends it.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.Log.Info("start ignored, already running")
		return nil
	}

	s, err := r.Settings.GetCurrent(ctx)
	if err != nil {
		r.mu.Unlock()
		mStartFailures.Inc()
		r.Log.Error("start failed", zap.Error(err))
		return fmt.Errorf("%w: load settings: %w", ErrStartFailed, err)
	}
	if s.IntervalSec <= 0 {
		r.mu.Unlock()
		mStartFailures.Inc()
		r.Log.Error("start failed", zap.Int("interval_sec", s.IntervalSec))
		return fmt.Errorf("%w: interval must be positive, got %ds", ErrStartFailed, s.IntervalSec)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	fire, stopTicker := r.newTicker(s.Interval())
	done := make(chan struct{})

	r.running = true
	r.cancel = cancel
	r.done = done
	r.interval = s.Interval()
	r.startedAt = time.Now().UTC()
	r.mu.Unlock()

	mRunning.Set(1)
	r.Log.Info("scheduler started", zap.Duration("interval", s.Interval()))

	go r.loop(loopCtx, fire, stopTicker, done)

	r.tickMu.Lock()
	r.tick(context.WithoutCancel(loopCtx))
	r.tickMu.Unlock()
	return nil
}

// Stop disarms the ticker. A tick already in flight runs to completion.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.cancel()
	r.running = false
	r.cancel = nil
	mRunning.Set(0)
	r.Log.Info("scheduler stopped")
}

func (r *Runner) Restart(ctx context.Context) error {
	r.Stop()
	return r.Start(ctx)
}

// Wait blocks until the last started loop has exited and no tick is running,
// or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	idle := make(chan struct{})
	go func() {
		r.tickMu.Lock()
		r.tickMu.Unlock()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{State: StateStopped}
	if r.running {
		started := r.startedAt
		st.State = StateRunning
		st.IntervalSec = int(r.interval / time.Second)
		st.StartedAt = &started
	}
	if r.last != nil {
		last := *r.last
		st.Last = &last
	}
	return st
}

func (r *Runner) loop(ctx context.Context, fire <-chan time.Time, stopTicker func(), done chan struct{}) {
	defer close(done)
	defer stopTicker()
	for {
		select {
		case <-ctx.Done():
			return
		case <-fire:
			if ctx.Err() != nil {
				return
			}
			if !r.tickMu.TryLock() {
				mSkipped.Inc()
				r.Log.Warn("tick skipped, previous tick still running")
				continue
			}
			r.tick(context.WithoutCancel(ctx))
			r.tickMu.Unlock()
		}
	}
}

// tick must be called with tickMu held.
func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	rep, err := r.UC.Tick(ctx)
	mTickDur.Observe(time.Since(start).Seconds())

	last := &LastTick{Report: rep, At: time.Now().UTC()}
	if err != nil {
		mTicks.WithLabelValues("error").Inc()
		last.Error = err.Error()
		r.Log.Error("tick failed", zap.String("tick_id", rep.ID), zap.Error(err))
	} else {
		mTicks.WithLabelValues("ok").Inc()
	}

	r.mu.Lock()
	r.last = last
	r.mu.Unlock()
}
