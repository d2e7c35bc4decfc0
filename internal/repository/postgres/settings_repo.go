package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/NordCoder/netwatch/internal/domain/settings"
)

var _ settings.Repo = (*SettingsRepoImpl)(nil)

type SettingsRepoImpl struct{ db *DB }

func NewSettingsRepo(db *DB) *SettingsRepoImpl { return &SettingsRepoImpl{db: db} }

// The table holds at most one row (id = 1). A missing row is created from
// probe.DefaultSettings on first read.
const (
	qSettingsEnsure = `
INSERT INTO ping_settings (id, interval_sec, timeout_sec, max_retries, max_concurrency, batch_size)
VALUES (1, $1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING;`

	qSettingsGet = `
SELECT interval_sec, timeout_sec, max_retries, max_concurrency, batch_size, updated_at
FROM ping_settings
WHERE id = 1;`

	qSettingsSave = `
INSERT INTO ping_settings (id, interval_sec, timeout_sec, max_retries, max_concurrency, batch_size, updated_at)
VALUES (1, $1, $2, $3, $4, $5, now())
ON CONFLICT (id) DO UPDATE
SET interval_sec    = EXCLUDED.interval_sec,
    timeout_sec     = EXCLUDED.timeout_sec,
    max_retries     = EXCLUDED.max_retries,
    max_concurrency = EXCLUDED.max_concurrency,
    batch_size      = EXCLUDED.batch_size,
    updated_at      = now();`
)

func (r *SettingsRepoImpl) GetCurrent(ctx context.Context) (probe.Settings, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	d := probe.DefaultSettings()
	if _, err := eq.Exec(ctx, qSettingsEnsure, d.IntervalSec, d.TimeoutSec, d.MaxRetries, d.MaxConcurrency, d.BatchSize); err != nil {
		return probe.Settings{}, fmt.Errorf("ensure settings row: %w", err)
	}

	var s probe.Settings
	if err := eq.QueryRow(ctx, qSettingsGet).Scan(
		&s.IntervalSec, &s.TimeoutSec, &s.MaxRetries, &s.MaxConcurrency, &s.BatchSize, &s.UpdatedAt,
	); err != nil {
		return probe.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

func (r *SettingsRepoImpl) Save(ctx context.Context, s probe.Settings) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qSettingsSave,
		s.IntervalSec, s.TimeoutSec, s.MaxRetries, s.MaxConcurrency, s.BatchSize,
	); err != nil {
		return fmt.Errorf("save settings: %w", mapPgErr(err))
	}
	return nil
}
