package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/netwatch/internal/domain/pinglog"
	"github.com/NordCoder/netwatch/internal/domain/probe"
)

var _ pinglog.Repo = (*PingLogRepoImpl)(nil)

type PingLogRepoImpl struct{ db *DB }

func NewPingLogRepo(db *DB) *PingLogRepoImpl { return &PingLogRepoImpl{db: db} }

const (
	qPingLogInsert = `
INSERT INTO ping_logs (endpoint_id, status, latency_ms, error, probed_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;`

	qPingLogByEndpoint = `
SELECT id, endpoint_id, status, latency_ms, error, probed_at
FROM ping_logs
WHERE endpoint_id = $1
ORDER BY probed_at DESC, id DESC
LIMIT $2;`
)

func (r *PingLogRepoImpl) Append(ctx context.Context, e *pinglog.Entry) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qPingLogInsert,
		e.EndpointID, string(e.Status), e.LatencyMS, e.Error, e.At,
	).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert ping log: %w", mapPgErr(err))
	}
	return nil
}

func (r *PingLogRepoImpl) ListByEndpoint(ctx context.Context, endpointID int64, limit int) ([]*pinglog.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qPingLogByEndpoint, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("query ping logs: %w", err)
	}
	defer rows.Close()

	out := make([]*pinglog.Entry, 0, limit)
	for rows.Next() {
		var (
			e      pinglog.Entry
			status string
		)
		if err := rows.Scan(&e.ID, &e.EndpointID, &status, &e.LatencyMS, &e.Error, &e.At); err != nil {
			return nil, fmt.Errorf("scan ping log: %w", err)
		}
		e.Status = probe.Status(status)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
