package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/NordCoder/netwatch/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrMalformed marks a message that can never be handled. The consumer
// commits past it instead of redelivering.
var ErrMalformed = errors.New("kafka: malformed message")

var consumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_messages_consumed_total",
	Help: "Messages fetched from kafka by topic and outcome (ok, malformed, failed).",
}, []string{"topic", "result"})

type Handler func(ctx context.Context, key, value []byte) error

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	Logger        *zap.Logger
}

type Consumer struct {
	reader  *kafka.Reader
	topic   string
	log     *zap.Logger
	backoff retry.Backoff
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:               cfg.Brokers,
			GroupID:               cfg.GroupID,
			Topic:                 cfg.Topic,
			StartOffset:           start,
			WatchPartitionChanges: true,
			MinBytes:              1,
			MaxBytes:              1 << 20,
			MaxWait:               time.Second,
			SessionTimeout:        10 * time.Second,
			RebalanceTimeout:      15 * time.Second,
			HeartbeatInterval:     3 * time.Second,
		}),
		topic: cfg.Topic,
		log: log.With(
			zap.String("component", "kafka.consumer"),
			zap.String("topic", cfg.Topic),
			zap.String("group", cfg.GroupID),
		),
		backoff: retry.ExpoJitter{Base: 200 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2},
	}
}

// Consume fetches messages until ctx is done. A message is committed once h
// succeeds or reports ErrMalformed; any other handler error leaves it
// uncommitted so the group redelivers it after a rebalance or restart.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	c.log.Info("consumer started")
	defer c.log.Info("consumer stopped")

	failures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := c.backoff.Next(failures)
			failures++
			if errors.Is(err, io.EOF) {
				c.log.Debug("fetch EOF", zap.Duration("backoff", wait))
			} else {
				c.log.Warn("fetch failed", zap.Duration("backoff", wait), zap.Error(err))
			}
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue
		}
		failures = 0

		commit := c.handle(ctx, msg, h)
		if !commit {
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, h Handler) bool {
	hs := msg.Headers
	parent := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{&hs})
	mctx, span := otel.Tracer("netwatch/kafka").Start(parent, "consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	log := c.log.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
	switch err := h(mctx, msg.Key, msg.Value); {
	case err == nil:
		consumed.WithLabelValues(c.topic, "ok").Inc()
		return true
	case errors.Is(err, ErrMalformed):
		span.RecordError(err)
		consumed.WithLabelValues(c.topic, "malformed").Inc()
		log.Warn("skipping malformed message", zap.Error(err))
		return true
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler")
		consumed.WithLabelValues(c.topic, "failed").Inc()
		log.Error("handler error", zap.Error(err))
		return false
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
