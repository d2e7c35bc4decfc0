package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/NordCoder/netwatch/internal/domain/endpoint"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/jackc/pgx/v5"
)

var _ endpoint.Repo = (*EndpointRepoImpl)(nil)

type EndpointRepoImpl struct {
	db *DB
}

func NewEndpointRepo(db *DB) *EndpointRepoImpl { return &EndpointRepoImpl{db: db} }

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var endpointColumns = []string{
	"id", "address", "group_name", "active", "last_status", "last_probe_at", "created_at", "updated_at",
}

const (
	qEndpointUpdateStatus = `
UPDATE network_endpoints
SET last_status = $2, last_probe_at = $3, updated_at = now()
WHERE id = $1;`

	qEndpointCountActive = `SELECT count(*) FROM network_endpoints WHERE active;`

	qEndpointUpsert = `
INSERT INTO network_endpoints (address, group_name, active)
VALUES ($1, $2, $3)
ON CONFLICT (address) DO UPDATE
SET group_name = EXCLUDED.group_name,
    active     = EXCLUDED.active,
    updated_at = now()
RETURNING id, address, group_name, active, last_status, last_probe_at, created_at, updated_at;`
)

func scanEndpoint(row pgx.Row, e *endpoint.Endpoint) error {
	var status string
	if err := row.Scan(
		&e.ID,
		&e.Address,
		&e.Group,
		&e.Active,
		&status,
		&e.LastProbeAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan endpoint: %w", err)
	}
	e.LastStatus = probe.Status(status)
	return nil
}

func (r *EndpointRepoImpl) ListActive(ctx context.Context) ([]*endpoint.Endpoint, error) {
	return r.List(ctx, endpoint.Filter{ActiveOnly: true})
}

// ListQuery renders the SELECT for f.
func ListQuery(f endpoint.Filter) (string, []any, error) {
	q := psql.Select(endpointColumns...).From("network_endpoints")
	if f.ActiveOnly {
		q = q.Where(sq.Eq{"active": true})
	}
	if f.Group != "" {
		q = q.Where(sq.Eq{"group_name": f.Group})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"last_status": string(f.Status)})
	}
	q = q.OrderBy("id")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q.ToSql()
}

func (r *EndpointRepoImpl) List(ctx context.Context, f endpoint.Filter) ([]*endpoint.Endpoint, error) {
	query, args, err := ListQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build endpoint query: %w", err)
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer rows.Close()

	var out []*endpoint.Endpoint
	for rows.Next() {
		var e endpoint.Endpoint
		if err := scanEndpoint(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *EndpointRepoImpl) CountActive(ctx context.Context) (int, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qEndpointCountActive).Scan(&n); err != nil {
		return 0, fmt.Errorf("count endpoints: %w", err)
	}
	return n, nil
}

func (r *EndpointRepoImpl) UpdateStatus(ctx context.Context, id int64, status probe.Status, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qEndpointUpdateStatus, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update endpoint status: %w", mapPgErr(err))
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EndpointRepoImpl) Upsert(ctx context.Context, e *endpoint.Endpoint) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qEndpointUpsert, e.Address, e.Group, e.Active)
	return scanEndpoint(row, e)
}
