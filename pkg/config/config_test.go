package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, 700*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 20*time.Millisecond, cfg.JoinDelay)
	assert.Equal(t, 800*time.Millisecond, cfg.SettleDelay)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "etlconsole.yaml", `
server_url: https://etl.example.com
poll_interval: 1s
settle_delay: 0s
data_dir: /tmp/etl
log_json: true
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "https://etl.example.com", cfg.ServerURL)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.SettleDelay)
	assert.Equal(t, DefaultJoinDelay, cfg.JoinDelay, "unset keys keep defaults")
	assert.Equal(t, "/tmp/etl", cfg.DataDir)
	assert.True(t, cfg.LogJSON)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "etlconsole.yaml", "server_url: http://file:5000\n")
	t.Setenv("ETLCONSOLE_SERVER_URL", "http://env:5000")
	t.Setenv("ETLCONSOLE_POLL_INTERVAL", "250ms")
	t.Setenv("ETLCONSOLE_LOG_LEVEL", "debug")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "http://env:5000", cfg.ServerURL)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvFile(t *testing.T) {
	t.Chdir(t.TempDir())
	// godotenv never overrides variables that are already present
	for _, key := range []string{"ETLCONSOLE_METRICS_ADDR", "ETLCONSOLE_REQUEST_TIMEOUT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	envFile := writeFile(t, "test.env", "ETLCONSOLE_METRICS_ADDR=:9105\nETLCONSOLE_REQUEST_TIMEOUT=30s\n")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, ":9105", cfg.MetricsAddr)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "bad yaml", file: "server_url: [\n"},
		{name: "bad scheme", file: "server_url: ftp://x\n"},
		{name: "zero poll interval", file: "poll_interval: 0s\n"},
		{name: "bad duration env", env: map[string]string{"ETLCONSOLE_JOIN_DELAY": "soon"}},
		{name: "bad bool env", env: map[string]string{"ETLCONSOLE_LOG_JSON": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, "c.yaml", tt.file)
			}
			_, err := Load(path, "")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("/does/not/exist.yaml", "")
	assert.Error(t, err)

	_, err = Load("", "/does/not/exist.env")
	assert.Error(t, err)

	cfg, err := Load("", "")
	require.NoError(t, err, "a missing ./.env is fine")
	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
}
