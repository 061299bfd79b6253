package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avadiag/internal/config"
	"github.com/vyrodovalexey/avadiag/internal/diagnostics"
	"github.com/vyrodovalexey/avadiag/internal/health"
	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/plugin"
	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

// ============================================================================
// Flags and environment
// ============================================================================

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("DIAGD_TEST_SET", "env-value")
	t.Setenv("DIAGD_TEST_EMPTY", "")

	assert.Equal(t, "env-value", getEnvOrDefault("DIAGD_TEST_SET", "default"))
	assert.Equal(t, "default", getEnvOrDefault("DIAGD_TEST_EMPTY", "default"))
	assert.Equal(t, "default", getEnvOrDefault("DIAGD_TEST_NOT_SET", "default"))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		expected     bool
	}{
		{value: "", defaultValue: true, expected: true},
		{value: "true", defaultValue: false, expected: true},
		{value: "YES", defaultValue: false, expected: true},
		{value: "on", defaultValue: false, expected: true},
		{value: "0", defaultValue: true, expected: false},
		{value: "off", defaultValue: true, expected: false},
		{value: "maybe", defaultValue: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("DIAGD_TEST_BOOL", tt.value)
			assert.Equal(t, tt.expected, getEnvBool("DIAGD_TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestParseFlags(t *testing.T) {
	t.Setenv("DIAGD_CONFIG_PATH", "")
	t.Setenv("DIAGD_LOG_LEVEL", "")
	t.Setenv("DIAGD_LOG_FORMAT", "")

	flags, err := parseFlags([]string{"-config", "diagd.yaml", "-log-level", "debug", "-version"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, cliFlags{
		configPath:  "diagd.yaml",
		logLevel:    "debug",
		showVersion: true,
	}, flags)

	_, err = parseFlags([]string{"-unknown"}, io.Discard)
	assert.Error(t, err)
}

func TestParseFlags_Environment(t *testing.T) {
	t.Setenv("DIAGD_CONFIG_PATH", "/etc/avadiag/diagd.yaml")
	t.Setenv("DIAGD_LOG_LEVEL", "warn")
	t.Setenv("DIAGD_LOG_FORMAT", "console")

	flags, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "/etc/avadiag/diagd.yaml", flags.configPath)
	assert.Equal(t, "warn", flags.logLevel)
	assert.Equal(t, "console", flags.logFormat)
}

func TestPrintVersion(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printVersion(&buf)

	assert.Contains(t, buf.String(), "diagd version dev")
	assert.Contains(t, buf.String(), "Git commit: unknown")
}

func TestLogConfig(t *testing.T) {
	t.Parallel()

	base := observability.LogConfig{Level: "info", Format: "json", Output: "stderr"}

	assert.Equal(t, base, logConfig(base, cliFlags{}))
	assert.Equal(t, observability.LogConfig{Level: "debug", Format: "console", Output: "stderr"},
		logConfig(base, cliFlags{logLevel: "debug", logFormat: "console"}))
}

// ============================================================================
// Configuration
// ============================================================================

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "diagd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, path := loadConfig("", observability.NopLogger())
	assert.Empty(t, path)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	file := writeConfig(t, "admin:\n  port: 8800\n")

	cfg, path := loadConfig(file, observability.NopLogger())
	assert.Equal(t, file, path)
	assert.Equal(t, 8800, cfg.Admin.Port)
	assert.Equal(t, 8801, cfg.DiagnosticsPort())
}

func TestLoadConfig_InvalidExits(t *testing.T) {
	origExit := exitFunc
	defer func() { exitFunc = origExit }()

	var code int
	exitFunc = func(c int) { code = c }

	cfg, path := loadConfig(writeConfig(t, "admin:\n  port: -1\n"), observability.NopLogger())
	assert.Equal(t, 1, code)
	assert.Empty(t, path)
	assert.NotNil(t, cfg)

	code = 0
	loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), observability.NopLogger())
	assert.Equal(t, 1, code)
}

func TestApplyLogLevel(t *testing.T) {
	t.Parallel()

	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Logging.Level = "debug"

	applyLogLevel(logger, cfg, cliFlags{logLevel: "info"})
	assert.Equal(t, "info", logger.Level())

	applyLogLevel(logger, cfg, cliFlags{})
	assert.Equal(t, "debug", logger.Level())
}

// ============================================================================
// Run
// ============================================================================

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Admin.Address = "127.0.0.1"
	cfg.Admin.Port = 0
	cfg.Diagnostics.Address = "127.0.0.1"
	cfg.ShutdownTimeout = config.Duration(5 * time.Second)
	return cfg
}

func httpGet(t *testing.T, addr net.Addr, path string) (int, string) {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr.String() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestRun(t *testing.T) {
	t.Setenv("DIAGD_DIAGNOSTICS_ENABLED", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := observability.NopLogger()
	app := initApplication(ctx, testConfig(), plugin.NewCatalog(), logger)
	require.NotNil(t, app.diagnostics)

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, app, "", cliFlags{}, logger)
	}()

	require.Eventually(t, func() bool {
		return app.admin.Addr() != nil && app.diagnostics.State() == diagnostics.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	status, body := httpGet(t, app.admin.Addr(), "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)

	status, _ = httpGet(t, app.admin.Addr(), "/stats.json")
	assert.Equal(t, http.StatusOK, status)

	status, body = httpGet(t, app.admin.Addr(), "/ready")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "diagnostics: healthy")

	diag := app.diagnostics.Addr()
	status, body = httpGet(t, diag, "/stats.json")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "admin_build_info")

	status, _ = httpGet(t, diag, "/admin/per_host_metrics.json")
	assert.Equal(t, http.StatusOK, status)

	status, _ = httpGet(t, diag, "/health")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = httpGet(t, diag, "/ready")
	assert.Equal(t, http.StatusNotFound, status)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return")
	}

	assert.Equal(t, diagnostics.StateClosed, app.diagnostics.State())
	assert.Zero(t, app.closers.Len())
}

func TestRun_DiagnosticsAnswerWhileAdminIsSaturated(t *testing.T) {
	t.Setenv("DIAGD_DIAGNOSTICS_ENABLED", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.Admin.RateLimit = &config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	catalog := plugin.NewCatalog()
	require.NoError(t, catalog.Add("/slow.json", service.HandlerFunc(
		func(ctx context.Context, req *service.Request) (*service.Response, error) {
			select {
			case entered <- struct{}{}:
			default:
			}
			select {
			case <-release:
			case <-ctx.Done():
			}
			return service.OK(req.Proto, "slow"), nil
		},
	)))

	logger := observability.NopLogger()
	app := initApplication(ctx, cfg, catalog, logger)
	require.NotNil(t, app.diagnostics)

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, app, "", cliFlags{}, logger)
	}()

	require.Eventually(t, func() bool {
		return app.admin.Addr() != nil && app.diagnostics.State() == diagnostics.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	// The only admin token goes to a request that never finishes on its own.
	slow := make(chan int, 1)
	go func() {
		client := &http.Client{Timeout: 15 * time.Second}
		resp, err := client.Get("http://" + app.admin.Addr().String() + "/slow.json")
		if err != nil {
			slow <- 0
			return
		}
		_ = resp.Body.Close()
		slow <- resp.StatusCode
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("slow handler was not entered")
	}

	status, _ := httpGet(t, app.admin.Addr(), "/stats.json")
	assert.Equal(t, http.StatusTooManyRequests, status)

	diag := app.diagnostics.Addr()
	for _, path := range []string{"/stats.json", "/admin/metrics.json", "/admin/per_host_metrics.json"} {
		status, _ = httpGet(t, diag, path)
		assert.Equal(t, http.StatusOK, status, path)
	}
	status, _ = httpGet(t, diag, "/slow.json")
	assert.Equal(t, http.StatusNotFound, status)

	close(release)
	select {
	case code := <-slow:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(10 * time.Second):
		t.Fatal("slow request did not finish")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestReadinessChecker(t *testing.T) {
	tests := []struct {
		name      string
		enabled   string
		wantDiag  health.Check
		wantAdmin health.Check
	}{
		{
			name:      "nothing started",
			enabled:   "true",
			wantDiag:  health.Check{Status: health.StatusUnhealthy, Message: "unstarted"},
			wantAdmin: health.Check{Status: health.StatusUnhealthy, Message: "not listening"},
		},
		{
			name:      "diagnostics disabled",
			enabled:   "false",
			wantDiag:  health.Check{Status: health.StatusHealthy, Message: "disabled"},
			wantAdmin: health.Check{Status: health.StatusUnhealthy, Message: "not listening"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DIAGD_DIAGNOSTICS_ENABLED", tt.enabled)

			app := initApplication(context.Background(), testConfig(), plugin.NewCatalog(), observability.NopLogger())
			got := readinessChecker(app).Readiness(context.Background())

			assert.Equal(t, health.StatusUnhealthy, got.Status)
			assert.Equal(t, tt.wantDiag, got.Checks[diagnostics.Name])
			assert.Equal(t, tt.wantAdmin, got.Checks["admin"])
		})
	}
}

func TestRun_DiagnosticsDisabled(t *testing.T) {
	t.Setenv("DIAGD_DIAGNOSTICS_ENABLED", "false")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := initApplication(ctx, testConfig(), plugin.NewCatalog(), observability.NopLogger())
	assert.Nil(t, app.diagnostics)

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, app, "", cliFlags{}, observability.NopLogger())
	}()

	require.Eventually(t, func() bool {
		return app.admin.Addr() != nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_DiagnosticsBindFailure(t *testing.T) {
	t.Setenv("DIAGD_DIAGNOSTICS_ENABLED", "")

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig()
	cfg.Diagnostics.Port = taken.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := initApplication(ctx, cfg, plugin.NewCatalog(), observability.NopLogger())
	err = run(ctx, app, "", cliFlags{}, observability.NopLogger())

	var bindErr *util.BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Contains(t, bindErr.Address, strconv.Itoa(cfg.Diagnostics.Port))
	assert.Zero(t, app.closers.Len())
}

func TestRun_WatchesConfig(t *testing.T) {
	t.Setenv("DIAGD_DIAGNOSTICS_ENABLED", "false")

	path := writeConfig(t, "logging:\n  level: info\n")
	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := initApplication(ctx, testConfig(), plugin.NewCatalog(), logger)

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, app, path, cliFlags{}, logger)
	}()

	require.Eventually(t, func() bool {
		return app.admin.Addr() != nil && app.closers.Len() == 3
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: error\n"), 0o600))
	assert.Eventually(t, func() bool {
		return logger.Level() == "error"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestStartConfigWatcher_NoPath(t *testing.T) {
	t.Parallel()

	assert.Nil(t, startConfigWatcher(context.Background(), "", cliFlags{}, observability.NopLogger()))
}

func TestInitTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer := initTracer(context.Background(), config.DefaultConfig(), observability.NopLogger())
	require.NotNil(t, tracer)
	assert.False(t, tracer.Enabled())
}
