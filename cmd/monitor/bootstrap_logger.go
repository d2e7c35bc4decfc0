package main

import (
	config "github.com/NordCoder/netwatch/internal/config/monitor"
	"github.com/NordCoder/netwatch/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
}
