package monitor_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.ICMP.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Probe.BatchBudget)
	assert.Equal(t, 100*time.Millisecond, cfg.Probe.Pacing)
	assert.Equal(t, 256, cfg.Notify.BufferSize)
	assert.False(t, cfg.Kafka.Enable)
	assert.Zero(t, cfg.Probe.AsSettings().IntervalSec)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
probe:
  interval_sec: 60
  max_concurrency: 20
  batch_size: 50
icmp:
  privileged: true
`), 0o600))
	t.Setenv("SERVER_HTTP_ADDR", ":18080")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":18080", cfg.Server.HTTPAddr)
	assert.True(t, cfg.ICMP.Privileged)
	s := cfg.Probe.AsSettings()
	assert.Equal(t, 60, s.IntervalSec)
	assert.Equal(t, 20, s.MaxConcurrency)
	assert.Equal(t, 50, s.BatchSize)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
}

func TestLoad_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("probe: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_KafkaWithoutBrokers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kafka:\n  enable: true\n  brokers: []\n"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrNoBrokers)
}
