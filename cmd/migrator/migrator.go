package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/NordCoder/netwatch/internal/obs"
	pg "github.com/NordCoder/netwatch/internal/repository/postgres"
	"github.com/NordCoder/netwatch/internal/seed"
	"github.com/NordCoder/netwatch/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func main() {
	l, err := obs.NewLogger(obs.LogConfig{Level: "info", App: "netwatch/migrator"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		l.Fatal("DB_DSN is empty")
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		l.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	if err := migrate(db); err != nil {
		l.Fatal("migrate up", zap.Error(err))
	}
	l.Info("migrations: up OK")

	if path := os.Getenv("SEED_FILE"); path != "" {
		if err := seedEndpoints(dsn, path, l); err != nil {
			l.Fatal("seed", zap.String("file", path), zap.Error(err))
		}
	}
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}

func seedEndpoints(dsn, path string, l *zap.Logger) error {
	eps, err := seed.LoadFile(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	pool, err := pg.New(ctx, pg.Config{DSN: dsn, AppName: "netwatch-migrator", MaxConns: 4, QueryTimeout: 5 * time.Second, ConnectAttempts: 10})
	if err != nil {
		return err
	}
	defer pool.Close()

	return pg.NewTransactor(pool, l).WithTx(ctx, func(ctx context.Context) error {
		return seed.Apply(ctx, pg.NewEndpointRepo(pool), eps, l)
	})
}
