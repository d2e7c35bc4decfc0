package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NordCoder/netwatch/internal/domain/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const doc = `
endpoints:
  - address: 10.0.0.1
    group: core
  - address: gw.example.net
    active: false
  - address: 10.0.0.1
    group: dup
groups:
  edge: [192.0.2.10, "2001:db8::1"]
  branch: [198.51.100.7]
`

func TestParse(t *testing.T) {
	eps, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	got := make([]endpoint.Endpoint, len(eps))
	for i, e := range eps {
		got[i] = *e
	}
	assert.Equal(t, []endpoint.Endpoint{
		{Address: "10.0.0.1", Group: "core", Active: true},
		{Address: "gw.example.net", Active: false},
		{Address: "198.51.100.7", Group: "branch", Active: true},
		{Address: "192.0.2.10", Group: "edge", Active: true},
		{Address: "2001:db8::1", Group: "edge", Active: true},
	}, got)
}

func TestParse_Empty(t *testing.T) {
	eps, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, eps)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"bad address":   "endpoints:\n  - address: 'not a host'\n",
		"unknown field": "endpoints:\n  - address: 10.0.0.1\n    port: 80\n",
		"not yaml":      "endpoints: [",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(in))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	eps, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, eps, 5)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

type memUpserter struct {
	got    []string
	failOn string
}

func (m *memUpserter) Upsert(_ context.Context, e *endpoint.Endpoint) error {
	if e.Address == m.failOn {
		return errors.New("constraint")
	}
	m.got = append(m.got, e.Address)
	e.ID = int64(len(m.got))
	return nil
}

func TestApply(t *testing.T) {
	eps, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	m := &memUpserter{}
	require.NoError(t, Apply(context.Background(), m, eps, zaptest.NewLogger(t)))
	assert.Len(t, m.got, 5)
	assert.Equal(t, int64(1), eps[0].ID)

	m = &memUpserter{failOn: "gw.example.net"}
	err = Apply(context.Background(), m, eps, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert gw.example.net")
	assert.Equal(t, []string{"10.0.0.1"}, m.got)
}
