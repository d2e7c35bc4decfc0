package notifier_config

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

	assert.Equal(t, "netwatch.status.change", cfg.In.Topic)
	assert.Equal(t, "netwatch-notifier", cfg.In.GroupID)
	assert.Equal(t, 5*time.Second, cfg.SMTP.Timeout)
	assert.Equal(t, []string{"ops@netwatch.local"}, cfg.Notify.Recipients)
	assert.Equal(t, ":9091", cfg.Server.MetricsAddr)

	cc := cfg.In.AsConsumerConfig()
	assert.Equal(t, cfg.In.Brokers, cc.Brokers)
	assert.Equal(t, cfg.In.GroupID, cc.GroupID)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifier.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kafka_in:
  brokers: ["k1:9092", "k2:9092"]
smtp:
  addr: mail:25
  use_tls: true
notify:
  recipients: ["a@x.io", "b@x.io"]
  only_groups: ["core"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.In.Brokers)
	assert.Equal(t, "mail:25", cfg.SMTP.Addr)
	assert.True(t, cfg.SMTP.UseTLS)
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, cfg.Notify.Recipients)
	assert.Equal(t, []string{"core"}, cfg.Notify.OnlyGroups)
}

func TestLoad_NoRecipients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifier.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notify:\n  recipients: []\n"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrNoRecipients)
}
