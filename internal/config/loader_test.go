package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avadiag/internal/util"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "diagd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
admin:
  address: 127.0.0.1
  port: 8080
  readTimeout: 3s
  rateLimit:
    requestsPerSecond: 50
    burst: 100
diagnostics:
  workers: 2
  queueSize: -1
  lockOSThread: false
  patterns:
    - /stats.json
logging:
  level: debug
  format: console
tracing:
  enabled: true
  otlpEndpoint: localhost:4317
  samplingRate: 0.5
shutdownTimeout: 5s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Admin.Address)
	assert.Equal(t, 8080, cfg.Admin.Port)
	assert.Equal(t, 3*time.Second, cfg.Admin.ReadTimeout.Duration())
	require.NotNil(t, cfg.Admin.RateLimit)
	assert.Equal(t, 50.0, cfg.Admin.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.Admin.RateLimit.Burst)

	assert.Equal(t, 8081, cfg.DiagnosticsPort())
	assert.Equal(t, 2, cfg.Diagnostics.Workers)
	assert.Equal(t, -1, cfg.Diagnostics.QueueSize)
	assert.False(t, cfg.DiagnosticsLockOSThread())
	assert.True(t, cfg.DiagnosticsEnabled())
	assert.Equal(t, []string{"/stats.json"}, cfg.Diagnostics.Patterns)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Tracing.OTLPEndpoint)
	assert.Equal(t, 0.5, cfg.Tracing.SamplingRate)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration())
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "admin: [unclosed"},
		{name: "unknown key", content: "admin:\n  prot: 8080\n"},
		{name: "invalid duration", content: "admin:\n  readTimeout: soon\n"},
		{name: "invalid port", content: "admin:\n  port: 70000\n"},
		{name: "invalid level", content: "logging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadConfigFromReader(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrConfigInvalid)
		})
	}
}

func TestLoadConfigFromReader_EnvSubstitution(t *testing.T) {
	t.Setenv("DIAGD_TEST_PORT", "7070")
	t.Setenv("DIAGD_TEST_LEVEL", "warn")

	cfg, err := LoadConfigFromReader(strings.NewReader(`
admin:
  port: ${DIAGD_TEST_PORT}
logging:
  level: ${DIAGD_TEST_LEVEL:-info}
  format: ${DIAGD_TEST_UNSET_FORMAT:-console}
tracing:
  serviceName: "cost$$center"
`))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Admin.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "cost$center", cfg.Tracing.ServiceName)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("DIAGD_TEST_EMPTY", "")

	assert.Equal(t, "a=", substituteEnvVars("a=${DIAGD_TEST_EMPTY:-x}"))
	assert.Equal(t, "b=", substituteEnvVars("b=${DIAGD_TEST_NOT_SET}"))
	assert.Equal(t, "c=${X}", substituteEnvVars("c=$${X}"))
	assert.Equal(t, "plain", substituteEnvVars("plain"))
}

func TestResolveConfigPath(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "")

	got, err := ResolveConfigPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = ResolveConfigPath("definitely-not-here-diagd.yaml")
	assert.Error(t, err)
}
