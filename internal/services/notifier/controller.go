package notifier

import (
	"context"
	"errors"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	kafkax "github.com/NordCoder/netwatch/internal/repository/kafka"
	"go.uber.org/zap"
)

type Subscriber interface {
	Consume(ctx context.Context, h kafkax.Handler) error
}

type Controller struct {
	Log *zap.Logger
	Sub Subscriber
	UC  *Handler
}

func (c *Controller) Run(ctx context.Context) error {
	h := kafkax.TransitionHandler(func(ctx context.Context, t notification.Transition) error {
		if t.EndpointID <= 0 {
			mErrors.WithLabelValues("decode").Inc()
			c.Log.Warn("status-change: invalid endpoint id", zap.Int64("id", t.EndpointID))
			return nil
		}
		return c.UC.HandleTransition(ctx, t)
	})
	if err := c.Sub.Consume(ctx, h); err != nil && !errors.Is(err, context.Canceled) {
		mErrors.WithLabelValues("consume").Inc()
		c.Log.Warn("kafka consume", zap.Error(err))
		return err
	}
	return ctx.Err()
}
