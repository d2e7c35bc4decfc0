package prober

import "github.com/NordCoder/netwatch/internal/domain/probe"

var tiers = []struct {
	upTo int
	rec  probe.Recommendation
}{
	{50, probe.Recommendation{MaxConcurrency: 20, BatchSize: 50}},
	{200, probe.Recommendation{MaxConcurrency: 30, BatchSize: 100}},
	{500, probe.Recommendation{MaxConcurrency: 50, BatchSize: 100}},
	{1000, probe.Recommendation{MaxConcurrency: 75, BatchSize: 200}},
	{5000, probe.Recommendation{MaxConcurrency: 100, BatchSize: 500}},
}

// Recommend maps an endpoint count to concurrency and batch size.
func Recommend(count int) probe.Recommendation {
	for _, t := range tiers {
		if count <= t.upTo {
			return t.rec
		}
	}
	return probe.Recommendation{MaxConcurrency: 150, BatchSize: 1000}
}
