package main

import (
	"context"
	"strings"

	"github.com/NordCoder/netwatch/internal/obs"
	kafkax "github.com/NordCoder/netwatch/internal/repository/kafka"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// kafka-init creates the status topics before the monitor and notifier start.
func main() {
	l, err := obs.NewLogger(obs.LogConfig{Level: "info", App: "netwatch/kafka-init"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("KAFKA_BROKERS", "localhost:9094")
	v.SetDefault("KAFKA_TOPICS", "netwatch.status.change")
	v.SetDefault("KAFKA_PARTITIONS", 3)
	v.SetDefault("KAFKA_RF", 1)
	v.SetDefault("KAFKA_WAIT", "30s")

	brokers := splitList(v.GetString("KAFKA_BROKERS"))
	topics := splitList(v.GetString("KAFKA_TOPICS"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*v.GetDuration("KAFKA_WAIT"))
	defer cancel()

	for _, t := range topics {
		spec := kafkax.StatusTopic(t, v.GetInt("KAFKA_PARTITIONS"))
		spec.ReplicationFactor = v.GetInt("KAFKA_RF")
		spec.MaxWait = v.GetDuration("KAFKA_WAIT")
		if err := kafkax.EnsureTopic(ctx, brokers, spec, l); err != nil {
			l.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
	}
	l.Info("kafka-init ok", zap.Strings("topics", topics), zap.Strings("brokers", brokers))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
