// Package main is the entry point for the diagnostics daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avadiag/internal/config"
	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/plugin"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// exitFunc is os.Exit, replaceable in tests.
var exitFunc = os.Exit

// cliFlags holds command line flags. Empty logging values defer to the
// configuration file.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		exitFunc(2)
		return
	}

	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	bootstrap := initLogger(observability.DefaultLogConfig(), flags)
	cfg, configPath := loadConfig(flags.configPath, bootstrap)

	logger := initLogger(cfg.LogConfig(), flags)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := initApplication(ctx, cfg, plugin.Default(), logger)
	if err := run(ctx, app, configPath, flags, logger); err != nil {
		fatalWithSync(logger, "diagd failed", observability.Error(err))
	}
}

// parseFlags parses command line flags.
func parseFlags(args []string, output io.Writer) (cliFlags, error) {
	fs := flag.NewFlagSet("diagd", flag.ContinueOnError)
	fs.SetOutput(output)

	var flags cliFlags
	fs.StringVar(&flags.configPath, "config", getEnvOrDefault("DIAGD_CONFIG_PATH", ""),
		"Path to configuration file (defaults are used when empty)")
	fs.StringVar(&flags.logLevel, "log-level", getEnvOrDefault("DIAGD_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error); overrides the configuration file")
	fs.StringVar(&flags.logFormat, "log-format", getEnvOrDefault("DIAGD_LOG_FORMAT", ""),
		"Log format (json, console); overrides the configuration file")
	fs.BoolVar(&flags.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return flags, nil
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "diagd version %s\n", version)
	_, _ = fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	_, _ = fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// logConfig applies the flag overrides to base.
func logConfig(base observability.LogConfig, flags cliFlags) observability.LogConfig {
	if flags.logLevel != "" {
		base.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		base.Format = flags.logFormat
	}
	return base
}

// initLogger builds the process logger and installs it globally.
func initLogger(base observability.LogConfig, flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(logConfig(base, flags))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		exitFunc(1)
		return observability.NopLogger()
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadConfig loads the configuration file, or the defaults when no path is
// given. It returns the resolved path, empty for defaults.
func loadConfig(path string, logger observability.Logger) (*config.Config, string) {
	logger.Info("starting diagd",
		observability.String("version", version),
		observability.String("config", path),
	)

	if path == "" {
		logger.Info("no configuration file given, using defaults")
		return config.DefaultConfig(), ""
	}

	resolved, err := config.ResolveConfigPath(path)
	if err != nil {
		fatalWithSync(logger, "failed to resolve configuration path", observability.Error(err))
		return config.DefaultConfig(), ""
	}

	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		fatalWithSync(logger, "failed to load configuration", observability.Error(err))
		return config.DefaultConfig(), ""
	}

	logger.Info("configuration loaded",
		observability.String("path", resolved),
		observability.Int("admin_port", cfg.Admin.Port),
		observability.Bool("diagnostics", cfg.DiagnosticsEnabled()),
		observability.Int("diagnostics_port", cfg.DiagnosticsPort()),
	)
	return cfg, resolved
}

// fatalWithSync logs msg, flushes the logger and exits with status 1.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	exitFunc(1)
}
