package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrTopicNotReady is returned when a topic has partitions without a leader
// once TopicSpec.MaxWait has passed.
var ErrTopicNotReady = errors.New("kafka: topic not ready")

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	// Retention of zero keeps the broker default.
	Retention time.Duration
	MaxWait   time.Duration
}

// StatusTopic describes the status-change topic. Transitions are only useful
// for a week, after that the ping log in postgres is the record.
func StatusTopic(name string, partitions int) TopicSpec {
	return TopicSpec{
		Name:              name,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
		Retention:         7 * 24 * time.Hour,
		MaxWait:           5 * time.Second,
	}
}

func (s TopicSpec) withDefaults() TopicSpec {
	if s.NumPartitions <= 0 {
		s.NumPartitions = 1
	}
	if s.ReplicationFactor <= 0 {
		s.ReplicationFactor = 1
	}
	if s.MaxWait <= 0 {
		s.MaxWait = 5 * time.Second
	}
	return s
}

func (s TopicSpec) config() kafka.TopicConfig {
	tc := kafka.TopicConfig{
		Topic:             s.Name,
		NumPartitions:     s.NumPartitions,
		ReplicationFactor: s.ReplicationFactor,
	}
	if s.Retention > 0 {
		tc.ConfigEntries = append(tc.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(s.Retention.Milliseconds(), 10),
		})
	}
	return tc
}

// EnsureTopic creates spec.Name through the cluster controller if it does not
// exist and waits until every partition has a leader.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	spec = spec.withDefaults()
	log = log.With(zap.String("topic", spec.Name))

	conn, err := dialAny(ctx, brokers)
	if err != nil {
		log.Warn("kafka unreachable", zap.Strings("brokers", brokers), zap.Error(err))
		return err
	}
	defer conn.Close()

	ctrl, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(ctrl.Host, strconv.Itoa(ctrl.Port)))
	if err != nil {
		return fmt.Errorf("dial controller %s:%d: %w", ctrl.Host, ctrl.Port, err)
	}
	defer cc.Close()

	switch err := cc.CreateTopics(spec.config()); {
	case err == nil:
		log.Info("topic created",
			zap.Int("partitions", spec.NumPartitions),
			zap.Duration("retention", spec.Retention))
	case errors.Is(err, kafka.TopicAlreadyExists):
		log.Debug("topic exists")
	default:
		return fmt.Errorf("create topic %s: %w", spec.Name, err)
	}

	return waitLeaders(ctx, conn, spec, log)
}

func dialAny(ctx context.Context, brokers []string) (*kafka.Conn, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	var errs []error
	for _, b := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", b, err))
	}
	return nil, errors.Join(errs...)
}

func waitLeaders(ctx context.Context, conn *kafka.Conn, spec TopicSpec, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, spec.MaxWait)
	defer cancel()

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		ps, err := conn.ReadPartitions(spec.Name)
		if err == nil && len(ps) > 0 && allLed(ps) {
			log.Info("topic ready", zap.Int("partitions", len(ps)))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %s", ErrTopicNotReady, spec.Name, spec.MaxWait)
		case <-tick.C:
		}
	}
}

func allLed(ps []kafka.Partition) bool {
	for _, p := range ps {
		if p.Leader.Host == "" {
			return false
		}
	}
	return true
}

// BootstrapProducer ensures the status topic and returns a producer for it.
// A topic that is not ready yet is logged; the writer retries on its own.
func BootstrapProducer(ctx context.Context, brokers []string, topic string, partitions int, log *zap.Logger) *Producer {
	if err := EnsureTopic(ctx, brokers, StatusTopic(topic, partitions), log); err != nil {
		log.Warn("ensure status topic", zap.Error(err))
	}
	return NewProducer(brokers, topic, log)
}

func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, partitions int, log *zap.Logger) *Consumer {
	if err := EnsureTopic(ctx, cfg.Brokers, StatusTopic(cfg.Topic, partitions), log); err != nil {
		log.Warn("ensure status topic", zap.Error(err))
	}
	if cfg.Logger == nil {
		cfg.Logger = log
	}
	return NewConsumer(cfg)
}
