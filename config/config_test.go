package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Default().Validate())
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "config.yaml", `
server:
  base_url: http://localhost:8002
  ws_url: ws://localhost:8002
  token: secret
sync:
  metrics_interval: 500ms
  history_interval: 3s
cache:
  capacity: 5
store:
  path: /tmp/sync.db
accounts:
  - VIP
  - DEMO
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8002", cfg.Server.BaseURL)
	assert.Equal(t, "secret", cfg.Server.Token)
	assert.Equal(t, "500ms", cfg.Sync.MetricsInterval)
	assert.Equal(t, 5, cfg.Cache.Capacity)
	assert.Equal(t, []string{"VIP", "DEMO"}, cfg.Accounts)
}

func TestLoadFromFileJSON(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "config.json", `{
		"server": {"base_url": "http://localhost:8002", "ws_url": "ws://localhost:8002"},
		"store": {"path": "/tmp/sync.db"},
		"accounts": ["VIP"]
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8002", cfg.Server.WSURL)
	assert.Equal(t, []string{"VIP"}, cfg.Accounts)
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "config.yaml", `
server:
  base_url: http://localhost:8002
store:
  path: /tmp/sync.db
accounts: [VIP]
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws_url")
}

func TestValidateBadDuration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Sync.SwitchTimeout = "ten seconds"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "switch_timeout")
}

func TestValidateRequiresAccounts(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Accounts = nil
	assert.Error(t, cfg.Validate())
}

func TestSaveAndReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Default()
	cfg.Server.Token = "t0k3n"

	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveToFile(path))

		got, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, cfg.Server.Token, got.Server.Token)
		assert.Equal(t, cfg.Accounts, got.Accounts)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	d, err := Duration("1500ms")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = Duration("")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = Duration("nope")
	assert.Error(t, err)
}
