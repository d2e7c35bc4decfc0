package prober

import (
	"testing"

	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/stretchr/testify/assert"
)

func TestRecommend(t *testing.T) {
	cases := []struct {
		count int
		want  probe.Recommendation
	}{
		{0, probe.Recommendation{MaxConcurrency: 20, BatchSize: 50}},
		{40, probe.Recommendation{MaxConcurrency: 20, BatchSize: 50}},
		{50, probe.Recommendation{MaxConcurrency: 20, BatchSize: 50}},
		{51, probe.Recommendation{MaxConcurrency: 30, BatchSize: 100}},
		{200, probe.Recommendation{MaxConcurrency: 30, BatchSize: 100}},
		{300, probe.Recommendation{MaxConcurrency: 50, BatchSize: 100}},
		{500, probe.Recommendation{MaxConcurrency: 50, BatchSize: 100}},
		{1000, probe.Recommendation{MaxConcurrency: 75, BatchSize: 200}},
		{5000, probe.Recommendation{MaxConcurrency: 100, BatchSize: 500}},
		{5001, probe.Recommendation{MaxConcurrency: 150, BatchSize: 1000}},
		{10000, probe.Recommendation{MaxConcurrency: 150, BatchSize: 1000}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Recommend(tc.count), "count=%d", tc.count)
	}
}

func TestValidAddress(t *testing.T) {
	valid := []string{"192.168.1.1", "8.8.8.8", "::1", "2001:db8::1", "example.com", "gw-01.lan", "localhost"}
	invalid := []string{"", "   ", "10.0.0.300", "1.2.3", "bad host", "-lead.example", "a..b", "2001:db8::zz"}

	for _, a := range valid {
		assert.True(t, ValidAddress(a), a)
	}
	for _, a := range invalid {
		assert.False(t, ValidAddress(a), a)
	}
}
