package prober

import (
	"context"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/probe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultPacing = 100 * time.Millisecond

type Batcher interface {
	ProbeBatch(ctx context.Context, addresses []string, concurrency int, timeout time.Duration) []probe.Result
}

// Campaign probes a full address list in consecutive chunks of
// settings.BatchSize with a short pause between chunks. Settings are used as
// given; range checks belong to whoever stores or edits them. Worker count is
// capped by the batch prober.
type Campaign struct {
	Batch  Batcher
	Pacing time.Duration
	Log    *zap.Logger

	sleep func(ctx context.Context, d time.Duration)
}

func NewCampaign(b Batcher, pacing time.Duration, log *zap.Logger) *Campaign {
	if pacing <= 0 {
		pacing = DefaultPacing
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Campaign{
		Batch:  b,
		Pacing: pacing,
		Log:    log.With(zap.String("component", "prober.campaign")),
		sleep:  sleepCtx,
	}
}

func (c *Campaign) Run(ctx context.Context, addresses []string, settings probe.Settings, onProgress probe.ProgressFunc) []probe.Result {
	if len(addresses) == 0 {
		return []probe.Result{}
	}
	chunks := chunk(addresses, settings.BatchSize)

	ctx, span := otel.Tracer("prober").Start(ctx, "prober.campaign",
		trace.WithAttributes(
			attribute.Int("campaign.addresses", len(addresses)),
			attribute.Int("campaign.chunks", len(chunks)),
			attribute.Int("campaign.concurrency", settings.MaxConcurrency),
		),
	)
	defer span.End()

	start := time.Now()
	out := make([]probe.Result, 0, len(addresses))
	for i, part := range chunks {
		out = append(out, c.Batch.ProbeBatch(ctx, part, settings.MaxConcurrency, settings.Timeout())...)

		if onProgress != nil {
			onProgress(float64(i+1)/float64(len(chunks))*100, i+1, len(chunks))
		}
		if i < len(chunks)-1 {
			c.pause(ctx)
		}
	}

	took := time.Since(start)
	campaignDuration.Observe(took.Seconds())
	c.Log.Info("campaign done",
		zap.Int("addresses", len(addresses)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", took),
	)
	return out
}

func (c *Campaign) pause(ctx context.Context) {
	d := c.Pacing
	if d <= 0 {
		d = DefaultPacing
	}
	if c.sleep == nil {
		sleepCtx(ctx, d)
		return
	}
	c.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func chunk(addresses []string, size int) [][]string {
	if size <= 0 {
		size = len(addresses)
	}
	out := make([][]string, 0, (len(addresses)+size-1)/size)
	for i := 0; i < len(addresses); i += size {
		out = append(out, addresses[i:min(i+size, len(addresses))])
	}
	return out
}
