package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "BTS_ENDPOINTS=ws://one.test/ws,ws://two.test/ws\nBTS_CALL_TIMEOUT=3s\nLOG_LEVEL=debug\nBTS_DATABASE_NAME=history.db\n")
	writeFile(t, dir, "assets.yaml", "assets:\n  - id: \"1.3.121\"\n    symbol: USD\n    precision: 4\n")
	t.Cleanup(func() {
		for _, key := range []string{"BTS_ENDPOINTS", "BTS_CALL_TIMEOUT", "LOG_LEVEL", "BTS_DATABASE_NAME"} {
			os.Unsetenv(key)
		}
	})
	t.Setenv("BTS_METRICS_ADDR", "127.0.0.1:9464")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"ws://one.test/ws", "ws://two.test/ws"}, cfg.rpc.Endpoints)
	assert.Equal(t, 3*time.Second, cfg.rpc.CallTimeout)
	assert.Equal(t, []string{"database"}, cfg.rpc.Namespaces)
	assert.Equal(t, -1, cfg.rpc.Reconnect.MaxRetries)
	assert.Equal(t, log.LevelDebug, cfg.log.Level)
	assert.Equal(t, "sqlite", cfg.dbConf.Driver)
	assert.Equal(t, "history.db", cfg.dbConf.Name)
	assert.Equal(t, "127.0.0.1:9464", cfg.metricsAddr)
	assert.Equal(t, 30*time.Second, cfg.connectTimeout)
	require.NoError(t, cfg.rpc.Validate())

	usd, ok := cfg.assets.Lookup("USD")
	require.True(t, ok)
	assert.Equal(t, uint8(4), usd.Precision)
	assert.Empty(t, cfg.warnings)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://node.bitshares.eu/ws"}, cfg.rpc.Endpoints)
	assert.Empty(t, cfg.assets.Assets)
	assert.Len(t, cfg.warnings, 2)
}

func TestLoadConfig_InvalidAssets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "assets.yaml", "assets:\n  - id: usd\n    symbol: USD\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)
}
