package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/charon/pkg/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
registry: /srv/charon/registry
socket: /tmp/charon.sock
log_level: debug
debug: true
tracing:
  enabled: true
  endpoint: collector:4318
rate_limit:
  rps: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/charon/registry", cfg.Registry)
	assert.Equal(t, "/tmp/charon.sock", cfg.Socket)
	assert.Equal(t, "/etc/systemd/system", cfg.SystemdRoot)
	assert.Equal(t, logging.DEBUG, cfg.Level())
	assert.True(t, cfg.DebugMode())
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, "charon", cfg.Tracing.ServiceName)
	assert.Equal(t, 5.0, cfg.RateLimit.RPS)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.Equal(t, "/srv/charon/registry", cfg.OpenRegistry().Path())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "registry: /from/file\n")
	t.Setenv("CHARON_REGISTRY", "/from/env")
	t.Setenv("CHARON_DEBUG", "true")
	t.Setenv("CHARON_RATE_LIMIT_BURST", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Registry)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
}

func TestLoadWithBoundOverride(t *testing.T) {
	v := viper.New()
	v.Set("registry", "/from/flag")

	cfg, err := LoadWith(v, writeConfig(t, "registry: /from/file\n"))
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Registry)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "log_level: loud\n"))
	assert.ErrorContains(t, err, "unknown log level")

	_, err = Load(writeConfig(t, "registry: [unclosed\n"))
	assert.Error(t, err)
}

func TestDefaultRoundTripsThroughYAML(t *testing.T) {
	d := Default()
	data, err := yaml.Marshal(d)
	require.NoError(t, err)

	cfg, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, d, *cfg)
}
