package probe

import "time"

const (
	MinConcurrency = 1
	MaxConcurrency = 200
	MinBatchSize   = 10
	MaxBatchSize   = 1000

	defaultIntervalSec = 30
	defaultTimeoutSec  = 5
)

// Settings is an immutable snapshot taken at the start of a tick.
type Settings struct {
	IntervalSec    int       `json:"interval_sec" validate:"min=5,max=3600"`
	TimeoutSec     int       `json:"timeout_sec" validate:"min=1,max=30"`
	MaxRetries     int       `json:"max_retries" validate:"min=1,max=10"`
	MaxConcurrency int       `json:"max_concurrency" validate:"min=1,max=200"`
	BatchSize      int       `json:"batch_size" validate:"min=10,max=1000"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func DefaultSettings() Settings {
	return Settings{
		IntervalSec:    defaultIntervalSec,
		TimeoutSec:     defaultTimeoutSec,
		MaxRetries:     3,
		MaxConcurrency: 50,
		BatchSize:      100,
	}
}

// Normalize clamps concurrency and batch size into their allowed ranges and
// replaces non-positive interval/timeout with defaults.
func (s Settings) Normalize() Settings {
	s.MaxConcurrency = clamp(s.MaxConcurrency, MinConcurrency, MaxConcurrency)
	s.BatchSize = clamp(s.BatchSize, MinBatchSize, MaxBatchSize)
	if s.IntervalSec <= 0 {
		s.IntervalSec = defaultIntervalSec
	}
	if s.TimeoutSec <= 0 {
		s.TimeoutSec = defaultTimeoutSec
	}
	return s
}

func (s Settings) Interval() time.Duration { return time.Duration(s.IntervalSec) * time.Second }

func (s Settings) Timeout() time.Duration { return time.Duration(s.TimeoutSec) * time.Second }

func (s Settings) WithRecommendation(r Recommendation) Settings {
	s.MaxConcurrency = r.MaxConcurrency
	s.BatchSize = r.BatchSize
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
