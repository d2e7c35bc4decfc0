package notification

import (
	"context"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/probe"
)

type EventType string

const (
	EventStatusChanges   EventType = "status_changes"
	EventDashboardUpdate EventType = "dashboard_update"
)

// Transition is a change of an endpoint's last known status between ticks.
type Transition struct {
	EndpointID int64        `json:"id"`
	Address    string       `json:"address"`
	Group      string       `json:"group"`
	Old        probe.Status `json:"old_status"`
	New        probe.Status `json:"new_status"`
	At         time.Time    `json:"timestamp"`
	LatencyMS  *float64     `json:"latency_ms,omitempty"`
}

type Counts struct {
	Total   int `json:"total"`
	Up      int `json:"up"`
	Down    int `json:"down"`
	Error   int `json:"error"`
	Unknown int `json:"unknown"`
}

func (c *Counts) Add(s probe.Status) {
	c.Total++
	switch s {
	case probe.StatusUp:
		c.Up++
	case probe.StatusDown:
		c.Down++
	case probe.StatusError:
		c.Error++
	default:
		c.Unknown++
	}
}

type Event struct {
	Type        EventType    `json:"type"`
	Transitions []Transition `json:"data,omitempty"`
	Counts      *Counts      `json:"counts,omitempty"`
}

func StatusChanges(ts []Transition) Event {
	return Event{Type: EventStatusChanges, Transitions: ts}
}

func DashboardUpdate(c Counts) Event {
	return Event{Type: EventDashboardUpdate, Counts: &c}
}

// Sink accepts events without blocking the caller. Delivery is best effort.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}
