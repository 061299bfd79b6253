package main

import (
	"context"

	"github.com/vyrodovalexey/avadiag/internal/admin"
	"github.com/vyrodovalexey/avadiag/internal/config"
	"github.com/vyrodovalexey/avadiag/internal/diagnostics"
	"github.com/vyrodovalexey/avadiag/internal/exporter"
	"github.com/vyrodovalexey/avadiag/internal/health"
	"github.com/vyrodovalexey/avadiag/internal/lifecycle"
	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/plugin"
)

// statsNamespace prefixes every metric exported by the daemon.
const statsNamespace = "admin"

// application holds all application components.
type application struct {
	config      *config.Config
	stats       *observability.PrometheusStats
	tracer      *observability.Tracer
	catalog     *plugin.Catalog
	admin       *admin.Server
	diagnostics *diagnostics.Server
	closers     *lifecycle.Group
}

// initApplication builds every component around catalog, the set of
// discoverable admin handlers. Nothing is bound yet.
func initApplication(
	ctx context.Context,
	cfg *config.Config,
	catalog *plugin.Catalog,
	logger observability.Logger,
) *application {
	stats := observability.NewPrometheusStats(statsNamespace)
	stats.SetBuildInfo(version, gitCommit)

	tracer := initTracer(ctx, cfg, logger)

	if err := exporter.New(stats.Gatherer(), logger).Register(catalog); err != nil {
		fatalWithSync(logger, "failed to register exporters", observability.Error(err))
		return nil
	}

	group := lifecycle.NewGroup(logger)

	app := &application{
		config:  cfg,
		stats:   stats,
		tracer:  tracer,
		catalog: catalog,
		closers: group,
	}
	app.admin = admin.New(adminConfig(cfg), catalog,
		admin.WithLogger(logger),
		admin.WithStats(stats),
		admin.WithTracer(tracer),
	)
	if getEnvBool("DIAGD_DIAGNOSTICS_ENABLED", cfg.DiagnosticsEnabled()) {
		app.diagnostics = diagnostics.New(diagnosticsOptions(cfg, catalog, group, logger))
	}

	if err := catalog.Add(health.PatternReady, readinessChecker(app).Handler()); err != nil {
		fatalWithSync(logger, "failed to register readiness probe", observability.Error(err))
		return nil
	}
	return app
}

// readinessChecker reports whether both servers are serving.
func readinessChecker(app *application) *health.Checker {
	checker := health.NewChecker(version)
	checker.RegisterCheck("admin", func(context.Context) health.Check {
		addr := app.admin.Addr()
		if addr == nil {
			return health.Check{Status: health.StatusUnhealthy, Message: "not listening"}
		}
		return health.Check{Status: health.StatusHealthy, Message: addr.String()}
	})
	checker.RegisterCheck(diagnostics.Name, func(context.Context) health.Check {
		if app.diagnostics == nil {
			return health.Check{Status: health.StatusHealthy, Message: "disabled"}
		}
		if state := app.diagnostics.State(); state != diagnostics.StateRunning {
			return health.Check{Status: health.StatusUnhealthy, Message: state.String()}
		}
		return health.Check{Status: health.StatusHealthy}
	})
	return checker
}

// initTracer initializes the tracer, falling back to a no-op tracer when
// the exporter cannot be created.
func initTracer(ctx context.Context, cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracer, err := observability.NewTracer(ctx, cfg.TracerConfig(), logger)
	if err != nil {
		logger.Error("failed to initialize tracer, tracing disabled", observability.Error(err))
		return observability.NewNopTracer()
	}
	return tracer
}

// adminConfig maps the admin section onto admin.Config.
func adminConfig(cfg *config.Config) admin.Config {
	out := admin.Config{
		Address:      cfg.Admin.Address,
		Port:         cfg.Admin.Port,
		ReadTimeout:  cfg.Admin.ReadTimeout.Duration(),
		WriteTimeout: cfg.Admin.WriteTimeout.Duration(),
		MaxBodySize:  cfg.Admin.MaxBodySize,
	}
	if rl := cfg.Admin.RateLimit; rl != nil {
		out.RateLimit = &admin.RateLimitConfig{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
		}
	}
	return out
}

// diagnosticsOptions maps the diagnostics section onto diagnostics.Options.
func diagnosticsOptions(
	cfg *config.Config,
	source diagnostics.Source,
	group *lifecycle.Group,
	logger observability.Logger,
) diagnostics.Options {
	return diagnostics.Options{
		Address:       cfg.Diagnostics.Address,
		Port:          cfg.Diagnostics.Port,
		AdminPort:     cfg.Admin.Port,
		Source:        source,
		Patterns:      cfg.Diagnostics.Patterns,
		RegisterClose: group.Register,
		Logger:        logger,
		Workers:       cfg.Diagnostics.Workers,
		QueueSize:     cfg.Diagnostics.QueueSize,
		LockOSThread:  cfg.DiagnosticsLockOSThread(),
		ReadTimeout:   cfg.Diagnostics.ReadTimeout.Duration(),
		WriteTimeout:  cfg.Diagnostics.WriteTimeout.Duration(),
	}
}
