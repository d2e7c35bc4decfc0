package main

import (
	"context"

	config "github.com/NordCoder/netwatch/internal/config/monitor"
	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/notify"
	"github.com/NordCoder/netwatch/internal/obs/retry"
	outboxsvc "github.com/NordCoder/netwatch/internal/outbox"
	kafkax "github.com/NordCoder/netwatch/internal/repository/kafka"
	pg "github.com/NordCoder/netwatch/internal/repository/postgres"
	"github.com/NordCoder/netwatch/internal/services/api"
	"github.com/NordCoder/netwatch/internal/services/prober"
	"github.com/NordCoder/netwatch/internal/services/scheduler"
	"github.com/NordCoder/netwatch/internal/services/scheduler/repo"
	"github.com/NordCoder/netwatch/internal/ws"
	"go.uber.org/zap"
)

type app struct {
	endpoints *pg.EndpointRepoImpl
	settings  *pg.SettingsRepoImpl
	hub       *ws.Hub
	events    *notify.Outbox
	uc        *scheduler.Usecase
	runner    *scheduler.Runner
	api       *api.Server

	// nil unless kafka is enabled
	producer *kafkax.Producer
	relay    *outboxsvc.Runner
}

func wiring(ctx context.Context, cfg *config.Config, db *pg.DB, l *zap.Logger) *app {
	a := &app{
		endpoints: pg.NewEndpointRepo(db),
		settings:  pg.NewSettingsRepo(db),
		hub:       ws.New(l),
	}
	logs := pg.NewPingLogRepo(db)
	tx := pg.NewTransactor(db, l)

	exec := prober.NewExecutor(prober.NewICMPClient(cfg.ICMP), cfg.ICMP.Timeout, l)
	batch := prober.NewBatchProber(exec, cfg.Probe.BatchBudget, l)
	campaign := prober.NewCampaign(batch, cfg.Probe.Pacing, l)

	a.events = notify.New(cfg.Notify.BufferSize, l, a.hub)

	var journal repo.TransitionJournal
	if cfg.Kafka.Enable {
		ob := pg.NewOutboxRepo(db)
		journal = repo.Journal{R: ob}

		a.producer = kafkax.BootstrapProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, 3, l)
		events := kafkax.NewStatusEventsKafka(a.producer)
		a.relay = outboxsvc.NewOutboxRunner(l, ob,
			outboxsvc.MakeGlobalOutboxHandler(events, retry.OutboxPublishPolicy(l)),
			outboxsvc.Config{
				Workers:       cfg.Outbox.Workers,
				BatchSize:     cfg.Outbox.BatchSize,
				Interval:      cfg.Outbox.WaitTime,
				InProgressTTL: cfg.Outbox.InProgressTTL,
				Retention:     cfg.Outbox.Retention,
			},
		)
	}

	var sink notification.Sink = a.events
	a.uc = scheduler.NewUC(a.endpoints, a.settings, logs, journal, tx, campaign, sink, l)
	a.runner = scheduler.New(l, a.uc, a.settings)

	a.api = &api.Server{
		Endpoints: a.endpoints,
		Logs:      logs,
		Settings:  a.settings,
		Scheduler: a.runner,
		Prober:    a.uc,
		Live:      a.hub,
		Log:       l.With(zap.String("component", "api")),
	}
	return a
}

// applyProbeSection merges the non-zero fields of a reloaded probe section
// into the stored settings and restarts a running scheduler.
func (a *app) applyProbeSection(ctx context.Context, p config.Probe, l *zap.Logger) {
	cur, err := a.settings.GetCurrent(ctx)
	if err != nil {
		l.Error("config reload: load settings", zap.Error(err))
		return
	}
	in := p.AsSettings()
	next := cur
	if in.IntervalSec > 0 {
		next.IntervalSec = in.IntervalSec
	}
	if in.TimeoutSec > 0 {
		next.TimeoutSec = in.TimeoutSec
	}
	if in.MaxRetries > 0 {
		next.MaxRetries = in.MaxRetries
	}
	if in.MaxConcurrency > 0 {
		next.MaxConcurrency = in.MaxConcurrency
	}
	if in.BatchSize > 0 {
		next.BatchSize = in.BatchSize
	}
	next = next.Normalize()
	if next == cur {
		return
	}
	if err := a.settings.Save(ctx, next); err != nil {
		l.Error("config reload: save settings", zap.Error(err))
		return
	}
	l.Info("probe settings reloaded",
		zap.Int("interval_sec", next.IntervalSec),
		zap.Int("max_concurrency", next.MaxConcurrency),
		zap.Int("batch_size", next.BatchSize),
	)
	if a.runner.Status().State != scheduler.StateRunning {
		return
	}
	if err := a.runner.Restart(ctx); err != nil {
		l.Error("config reload: restart scheduler", zap.Error(err))
	}
}
