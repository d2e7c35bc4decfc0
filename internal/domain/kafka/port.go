package kafka

import (
	"context"

	"github.com/NordCoder/netwatch/internal/domain/notification"
)

type StatusEvents interface {
	PublishStatusChanged(ctx context.Context, t notification.Transition) error
}
