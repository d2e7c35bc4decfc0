package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/netwatch/internal/config/monitor"
	"github.com/NordCoder/netwatch/internal/obs"
	"github.com/NordCoder/netwatch/internal/services/api"
	"go.uber.org/zap"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config/monitor.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting monitor",
		zap.String("env", cfg.App.Env),
		zap.String("ver", cfg.App.Version),
		zap.Bool("icmp_privileged", cfg.ICMP.Privileged),
		zap.Bool("kafka", cfg.Kafka.Enable),
	)

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	a := wiring(rootCtx, cfg, db, logger)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	go a.events.Run(bgCtx)
	if a.relay != nil {
		a.relay.Start(bgCtx)
	}

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, logger)

	go func() {
		err := config.Watch(rootCtx, cfgPath, cfg.Probe, func(p config.Probe) {
			a.applyProbeSection(rootCtx, p, logger)
		}, logger)
		if err != nil {
			logger.Warn("config watch disabled", zap.String("path", cfgPath), zap.Error(err))
		}
	}()

	httpSrv := api.NewHTTPServer(cfg.Server.HTTPAddr, a.api.Handler(),
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout)
	httpSrv.BaseContext = func(_ net.Listener) context.Context { return rootCtx }
	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
		httpErrCh <- httpSrv.ListenAndServe()
	}()

	started := closedChan()
	if cfg.Probe.AutoStart {
		started = autoStart(rootCtx, a.runner, logger)
	}

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = httpSrv.Shutdown(shCtx)
	select {
	case <-started:
	case <-shCtx.Done():
	}
	a.runner.Stop()
	if err := a.runner.Wait(shCtx); err != nil {
		logger.Warn("in-flight tick did not finish", zap.Error(err))
	}

	bgCancel()
	select {
	case <-a.events.Done():
	case <-shCtx.Done():
	}
	if a.relay != nil {
		a.relay.Wait()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	a.hub.Close()
	_ = ms.Shutdown(shCtx)

	time.Sleep(100 * time.Millisecond)
	logger.Info("bye")
}
