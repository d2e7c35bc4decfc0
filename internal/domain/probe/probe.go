package probe

import "time"

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
	StatusError   Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusUp, StatusDown, StatusError:
		return true
	}
	return false
}

// Result is the outcome of one probe attempt against one address.
type Result struct {
	Address   string    `json:"address"`
	Status    Status    `json:"status"`
	LatencyMS *float64  `json:"latency_ms,omitempty"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
}

type Recommendation struct {
	MaxConcurrency int `json:"max_concurrency"`
	BatchSize      int `json:"batch_size"`
}

// ProgressFunc is invoked after each completed chunk of a campaign.
type ProgressFunc func(percent float64, chunk, total int)
