package main

import (
	"context"

	"github.com/vyrodovalexey/avadiag/internal/config"
	"github.com/vyrodovalexey/avadiag/internal/observability"
)

// run starts every server, blocks until ctx is done and then tears the
// process down in reverse start order. A failure to start the admin or the
// diagnostics server is returned; the caller treats it as fatal.
func run(
	ctx context.Context,
	app *application,
	configPath string,
	flags cliFlags,
	logger observability.Logger,
) error {
	app.closers.Register("tracer", app.tracer.Shutdown)

	if err := app.admin.Start(ctx); err != nil {
		shutdown(app, logger)
		return err
	}
	app.closers.Register("admin", app.admin.Stop)

	if app.diagnostics != nil {
		// Registers its own Close with app.closers.
		if err := app.diagnostics.Start(ctx); err != nil {
			shutdown(app, logger)
			return err
		}
	} else {
		logger.Info("diagnostics server disabled")
	}

	if watcher := startConfigWatcher(ctx, configPath, flags, logger); watcher != nil {
		app.closers.Register("config watcher", func(context.Context) error {
			return watcher.Stop()
		})
	}

	logger.Info("diagd started")
	<-ctx.Done()
	logger.Info("received shutdown signal")

	shutdown(app, logger)
	return nil
}

// shutdown runs the registered closers within the configured timeout.
func shutdown(app *application, logger observability.Logger) {
	timeout := app.config.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.closers.Close(ctx); err != nil {
		logger.Error("shutdown completed with errors", observability.Error(err))
		return
	}
	logger.Info("diagd stopped")
}

// startConfigWatcher watches the configuration file and applies the log
// level on change, unless the level was fixed on the command line. Other
// settings take effect on restart.
func startConfigWatcher(
	ctx context.Context,
	configPath string,
	flags cliFlags,
	logger observability.Logger,
) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, func(_, cfg *config.Config) {
		applyLogLevel(logger, cfg, flags)
	}, config.WithLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}
	return watcher
}

// applyLogLevel sets the logger's level from cfg.
func applyLogLevel(logger observability.Logger, cfg *config.Config, flags cliFlags) {
	if flags.logLevel != "" || cfg.Logging.Level == logger.Level() {
		return
	}
	previous := logger.Level()
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		logger.Error("failed to apply log level", observability.Error(err))
		return
	}
	logger.Info("log level changed",
		observability.String("from", previous),
		observability.String("to", cfg.Logging.Level),
	)
}
