package prober

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prober_probes_total", Help: "Probe results by status",
	}, []string{"status"})
	probeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prober_rtt_seconds",
		Help:    "ICMP echo round-trip time",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	batchTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prober_batch_timeouts_total", Help: "Batches that hit the wall-clock budget",
	})
	batchSynthesized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prober_batch_synthesized_total", Help: "Results synthesized for probes outstanding at batch budget expiry",
	})
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "prober_batch_duration_seconds", Help: "Batch duration",
		Buckets: prometheus.DefBuckets,
	})
	campaignDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "prober_campaign_duration_seconds", Help: "Campaign duration",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
)
