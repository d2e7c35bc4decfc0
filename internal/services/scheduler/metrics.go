package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_ticks_total", Help: "Ticks by result",
	}, []string{"result"})
	mSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_ticks_skipped_total", Help: "Ticker fires dropped because a tick was still running",
	})
	mCommitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_commit_failures_total", Help: "Ticks whose results could not be persisted",
	})
	mTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_transitions_total", Help: "Endpoint status transitions detected",
	})
	mStartFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_start_failures_total", Help: "Scheduler start attempts that failed",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "scheduler_tick_duration_seconds", Help: "Scheduler tick duration",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
	mRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_running", Help: "1 while the scheduler is running",
	})
)
