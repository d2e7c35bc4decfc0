package endpoint

import (
	"time"

	"github.com/NordCoder/netwatch/internal/domain/probe"
)

type Endpoint struct {
	ID          int64        `json:"id"`
	Address     string       `json:"address"`
	Group       string       `json:"group"`
	Active      bool         `json:"active"`
	LastStatus  probe.Status `json:"last_status"`
	LastProbeAt *time.Time   `json:"last_probe_at"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Filter struct {
	Group      string
	Status     probe.Status
	ActiveOnly bool
	Limit      uint64
}
