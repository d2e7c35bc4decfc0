package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/netwatch/internal/obs/retry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	DSN               string        `mapstructure:"dsn"`
	AppName           string        `mapstructure:"app_name"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	// ConnectAttempts bounds how long New waits for postgres to come up.
	ConnectAttempts int `mapstructure:"connect_attempts"`
}

type DB struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

func New(ctx context.Context, cfg Config) (*DB, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.AppName != "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	setPositive(&pcfg.MaxConns, cfg.MaxConns)
	setPositive(&pcfg.MinConns, cfg.MinConns)
	setPositive(&pcfg.MaxConnLifetime, cfg.MaxConnLifetime)
	setPositive(&pcfg.MaxConnIdleTime, cfg.MaxConnIdleTime)
	setPositive(&pcfg.HealthCheckPeriod, cfg.HealthCheckPeriod)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	err = retry.Do(ctx, func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pool.Ping(pctx)
	}, retry.Policy{
		Name:     "postgres_connect",
		Attempts: max(cfg.ConnectAttempts, 1),
		Backoff:  retry.ExpoJitter{Base: 500 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.1},
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	registerPoolMetrics(pool)
	return &DB{Pool: pool, QueryTimeout: cfg.QueryTimeout}, nil
}

func setPositive[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// registerPoolMetrics exposes pool occupancy. Only the first pool of a
// process is registered.
func registerPoolMetrics(pool *pgxpool.Pool) {
	gauge := func(name, help string, f func(*pgxpool.Stat) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return float64(f(pool.Stat())) })
	}
	for _, c := range []prometheus.Collector{
		gauge("pg_pool_acquired_conns", "Connections currently checked out.", (*pgxpool.Stat).AcquiredConns),
		gauge("pg_pool_idle_conns", "Idle connections in the pool.", (*pgxpool.Stat).IdleConns),
		gauge("pg_pool_total_conns", "All connections owned by the pool.", (*pgxpool.Stat).TotalConns),
	} {
		var are prometheus.AlreadyRegisteredError
		if err := prometheus.Register(c); err != nil && !errors.As(err, &are) {
			panic(err)
		}
	}
}

func (db *DB) Close() { db.Pool.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}
