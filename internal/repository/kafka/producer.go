package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

var published = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_messages_published_total",
	Help: "Messages written to kafka by topic and result.",
}, []string{"topic", "result"})

// Producer writes protobuf messages to a single topic. Messages with the same
// key land on the same partition, so per-endpoint ordering is kept.
type Producer struct {
	w     *kafka.Writer
	topic string
	log   *zap.Logger
}

func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
		log:   log.With(zap.String("component", "kafka.producer"), zap.String("topic", topic)),
	}
}

func (p *Producer) PublishProto(ctx context.Context, key []byte, m proto.Message) error {
	name := string(proto.MessageName(m))
	ctx, span := otel.Tracer("netwatch/kafka").Start(ctx, "publish "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
			attribute.String("messaging.kafka.message.key", string(key)),
			attribute.String("netwatch.proto_message", name),
		),
	)
	defer span.End()

	value, err := proto.Marshal(m)
	if err != nil {
		span.SetStatus(codes.Error, "marshal")
		published.WithLabelValues(p.topic, "marshal_error").Inc()
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	hs := []kafka.Header{
		{Key: HeaderContentType, Value: []byte(contentTypeProto)},
		{Key: HeaderMessageType, Value: []byte(name)},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{&hs})

	if err := p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value, Headers: hs}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write")
		published.WithLabelValues(p.topic, "error").Inc()
		p.log.Warn("kafka write failed", zap.ByteString("key", key), zap.Error(err))
		return fmt.Errorf("write %s: %w", p.topic, err)
	}
	published.WithLabelValues(p.topic, "ok").Inc()
	p.log.Debug("published", zap.ByteString("key", key), zap.Int("bytes", len(value)))
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }

// KeyFromInt64 is the partition key for an endpoint id.
func KeyFromInt64(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
