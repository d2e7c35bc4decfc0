package monitor_config

import (
	"time"

	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/NordCoder/netwatch/internal/obs"
	pginfra "github.com/NordCoder/netwatch/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type ICMP struct {
	// Privileged uses raw sockets; otherwise unprivileged datagram ICMP
	// (net.ipv4.ping_group_range on Linux).
	Privileged  bool          `mapstructure:"privileged"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PayloadSize int           `mapstructure:"payload_size"`
}

type Probe struct {
	IntervalSec    int           `mapstructure:"interval_sec"`
	TimeoutSec     int           `mapstructure:"timeout_sec"`
	MaxRetries     int           `mapstructure:"max_retries"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchBudget    time.Duration `mapstructure:"batch_budget"`
	Pacing         time.Duration `mapstructure:"pacing"`
	// AutoStart starts the scheduler with the process.
	AutoStart bool `mapstructure:"auto_start"`
}

// AsSettings returns the settings part of the section. Zero when the file
// does not carry one.
func (p Probe) AsSettings() probe.Settings {
	return probe.Settings{
		IntervalSec:    p.IntervalSec,
		TimeoutSec:     p.TimeoutSec,
		MaxRetries:     p.MaxRetries,
		MaxConcurrency: p.MaxConcurrency,
		BatchSize:      p.BatchSize,
	}
}

type KafkaOut struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
	Retention     time.Duration `mapstructure:"retention"`
}

type Notify struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig(app App) *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		Version:     app.Version,
		Env:         app.Env,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level    string `mapstructure:"level"`
	Pretty   bool   `mapstructure:"pretty"`
	Output   string `mapstructure:"output"`
	Sampling bool   `mapstructure:"sampling"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:    lc.Level,
		Pretty:   lc.Pretty,
		Output:   lc.Output,
		Sampling: lc.Sampling,
		App:      app.Name,
		Env:      app.Env,
		Ver:      app.Version,
	}
}

type Config struct {
	App    App            `mapstructure:"app"`
	Server Server         `mapstructure:"server"`
	DB     pginfra.Config `mapstructure:"db"`
	ICMP   ICMP           `mapstructure:"icmp"`
	Probe  Probe          `mapstructure:"probe"`
	Kafka  KafkaOut       `mapstructure:"kafka"`
	Outbox Outbox         `mapstructure:"outbox"`
	Notify Notify         `mapstructure:"notify"`
	OTEL   OTEL           `mapstructure:"otel"`
	Log    Log            `mapstructure:"log"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
