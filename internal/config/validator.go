package config

import (
	"fmt"

	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

// Validator collects configuration problems keyed by YAML path.
type Validator struct {
	errors *util.ValidationError
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig validates cfg. Defaults are expected to be applied.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate returns a *util.ConfigError wrapping a *util.ValidationError
// listing every problem found, or nil.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = util.NewValidationError("invalid configuration")

	if cfg == nil {
		return util.NewConfigError("", "configuration is nil")
	}

	v.validateAdmin(&cfg.Admin)
	v.validateDiagnostics(cfg)
	v.validateLogging(&cfg.Logging)
	v.validateTracing(&cfg.Tracing)

	if cfg.ShutdownTimeout < 0 {
		v.addError("shutdownTimeout", "must not be negative")
	}

	if v.errors.HasErrors() {
		return util.NewConfigErrorWithCause("", "validation failed", v.errors)
	}
	return nil
}

func (v *Validator) addError(path, message string) {
	v.errors.AddField(path, message)
}

func (v *Validator) validateAdmin(admin *AdminConfig) {
	if err := util.ValidatePort(admin.Port); err != nil {
		v.addError("admin.port", err.Error())
	}
	if admin.ReadTimeout < 0 {
		v.addError("admin.readTimeout", "must not be negative")
	}
	if admin.WriteTimeout < 0 {
		v.addError("admin.writeTimeout", "must not be negative")
	}
	if admin.MaxBodySize < 0 {
		v.addError("admin.maxBodySize", "must not be negative")
	}
	if rl := admin.RateLimit; rl != nil {
		if rl.RequestsPerSecond < 0 {
			v.addError("admin.rateLimit.requestsPerSecond", "must not be negative")
		}
		if rl.Burst < 0 {
			v.addError("admin.rateLimit.burst", "must not be negative")
		}
	}
}

func (v *Validator) validateDiagnostics(cfg *Config) {
	d := &cfg.Diagnostics

	if err := util.ValidateNonNegativePort(d.Port); err != nil {
		v.addError("diagnostics.port", err.Error())
	}
	if port := cfg.DiagnosticsPort(); cfg.DiagnosticsEnabled() && port == cfg.Admin.Port {
		v.addError("diagnostics.port", fmt.Sprintf("port %d is already used by the admin server", port))
	}
	if port := cfg.DiagnosticsPort(); cfg.DiagnosticsEnabled() && port > 65535 {
		v.addError("diagnostics.port", fmt.Sprintf("derived port %d is out of range", port))
	}
	if d.Workers < 1 {
		v.addError("diagnostics.workers", "must be at least 1")
	}
	if d.QueueSize < -1 {
		v.addError("diagnostics.queueSize", "must be -1 (unbuffered) or greater")
	}
	if d.ReadTimeout < 0 {
		v.addError("diagnostics.readTimeout", "must not be negative")
	}
	if d.WriteTimeout < 0 {
		v.addError("diagnostics.writeTimeout", "must not be negative")
	}
	for i, p := range d.Patterns {
		if err := util.ValidatePattern(p); err != nil {
			v.addError(fmt.Sprintf("diagnostics.patterns[%d]", i), err.Error())
		}
	}
}

func (v *Validator) validateLogging(logging *LoggingConfig) {
	if _, err := observability.ParseLevel(logging.Level); err != nil {
		v.addError("logging.level", err.Error())
	}
	switch logging.Format {
	case observability.FormatJSON, observability.FormatConsole:
	default:
		v.addError("logging.format", fmt.Sprintf("unsupported format %q", logging.Format))
	}
}

func (v *Validator) validateTracing(tracing *TracingConfig) {
	if err := util.ValidatePercentage(tracing.SamplingRate); err != nil {
		v.addError("tracing.samplingRate", err.Error())
	}
	if tracing.Enabled {
		if err := util.ValidateNonEmpty(tracing.ServiceName, "serviceName"); err != nil {
			v.addError("tracing.serviceName", err.Error())
		}
	}
}
