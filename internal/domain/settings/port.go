package settings

import (
	"context"

	"github.com/NordCoder/netwatch/internal/domain/probe"
)

type Repo interface {
	// GetCurrent returns the active settings row, creating the default one if absent.
	GetCurrent(ctx context.Context) (probe.Settings, error)
	Save(ctx context.Context, s probe.Settings) error
}
