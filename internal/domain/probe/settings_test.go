package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettings_Normalize(t *testing.T) {
	cases := []struct {
		name string
		in   Settings
		want Settings
	}{
		{
			name: "within range",
			in:   Settings{IntervalSec: 60, TimeoutSec: 3, MaxConcurrency: 20, BatchSize: 50},
			want: Settings{IntervalSec: 60, TimeoutSec: 3, MaxConcurrency: 20, BatchSize: 50},
		},
		{
			name: "clamps high",
			in:   Settings{IntervalSec: 30, TimeoutSec: 5, MaxConcurrency: 500, BatchSize: 5000},
			want: Settings{IntervalSec: 30, TimeoutSec: 5, MaxConcurrency: 200, BatchSize: 1000},
		},
		{
			name: "clamps low and defaults",
			in:   Settings{MaxConcurrency: 0, BatchSize: 1},
			want: Settings{IntervalSec: 30, TimeoutSec: 5, MaxConcurrency: 1, BatchSize: 10},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Normalize())
		})
	}
}

func TestSettings_Durations(t *testing.T) {
	s := Settings{IntervalSec: 15, TimeoutSec: 2}
	assert.Equal(t, 15*time.Second, s.Interval())
	assert.Equal(t, 2*time.Second, s.Timeout())
}
