package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var txTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pg_transactions_total",
	Help: "Transactions opened by WithTx by outcome (commit, rollback, commit_failed).",
}, []string{"outcome"})

// TxManager opens read-committed transactions and parks them in the context,
// where every repository in this package picks them up.
type TxManager struct {
	db   *DB
	opts pgx.TxOptions
	log  *zap.Logger
}

var _ Transactor = (*TxManager)(nil)

func NewTransactor(db *DB, log *zap.Logger) *TxManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &TxManager{
		db:   db,
		opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
		log:  log.With(zap.String("component", "postgres.tx")),
	}
}

// WithTx runs fn inside a transaction carried by ctx. A nested call joins the
// outer transaction and leaves commit to it. A panic in fn rolls back and is
// re-raised.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.Pool.BeginTx(ctx, m.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			m.rollback(txCtx, tx)
			panic(p)
		}
		if err != nil {
			m.rollback(txCtx, tx)
			return
		}
		if cerr := tx.Commit(txCtx); cerr != nil {
			txTotal.WithLabelValues("commit_failed").Inc()
			m.log.Error("commit", zap.Error(cerr))
			err = fmt.Errorf("commit: %w", cerr)
			return
		}
		txTotal.WithLabelValues("commit").Inc()
	}()

	return fn(txCtx)
}

func (m *TxManager) rollback(ctx context.Context, tx pgx.Tx) {
	txTotal.WithLabelValues("rollback").Inc()
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		m.log.Error("rollback", zap.Error(err))
	}
}

type txKey struct{}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// execQueryer returns the transaction in ctx, or the pool outside one.
func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Pool
}
