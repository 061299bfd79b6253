package config

import (
	"time"

	"github.com/vyrodovalexey/avadiag/internal/observability"
)

// Default values applied by ApplyDefaults.
const (
	DefaultAdminPort         = 9990
	DefaultAdminReadTimeout  = 10 * time.Second
	DefaultAdminWriteTimeout = 30 * time.Second
	DefaultDiagWorkers       = 1
	DefaultDiagQueueSize     = 64
	DefaultDiagReadTimeout   = 5 * time.Second
	DefaultDiagWriteTimeout  = 10 * time.Second
	DefaultServiceName       = "avadiag"
	DefaultSamplingRate      = 1.0
	DefaultShutdownTimeout   = 30 * time.Second
)

// Config is the root configuration.
type Config struct {
	Admin           AdminConfig       `yaml:"admin" json:"admin"`
	Diagnostics     DiagnosticsConfig `yaml:"diagnostics" json:"diagnostics"`
	Logging         LoggingConfig     `yaml:"logging" json:"logging"`
	Tracing         TracingConfig     `yaml:"tracing" json:"tracing"`
	ShutdownTimeout Duration          `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// AdminConfig configures the primary admin server.
type AdminConfig struct {
	Address      string           `yaml:"address,omitempty" json:"address,omitempty"`
	Port         int              `yaml:"port" json:"port"`
	ReadTimeout  Duration         `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout Duration         `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	MaxBodySize  int64            `yaml:"maxBodySize,omitempty" json:"maxBodySize,omitempty"`
	RateLimit    *RateLimitConfig `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
}

// RateLimitConfig bounds the admin server's request rate.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// DiagnosticsConfig configures the isolated diagnostics server.
type DiagnosticsConfig struct {
	// Enabled defaults to true.
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
	// Port zero means the admin port plus one.
	Port      int `yaml:"port,omitempty" json:"port,omitempty"`
	Workers   int `yaml:"workers,omitempty" json:"workers,omitempty"`
	QueueSize int `yaml:"queueSize,omitempty" json:"queueSize,omitempty"`
	// LockOSThread defaults to true.
	LockOSThread *bool    `yaml:"lockOSThread,omitempty" json:"lockOSThread,omitempty"`
	ReadTimeout  Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	// Patterns overrides the default allow-list.
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing of the admin server.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in unset values.
func (c *Config) ApplyDefaults() {
	if c.Admin.Port == 0 {
		c.Admin.Port = DefaultAdminPort
	}
	if c.Admin.ReadTimeout == 0 {
		c.Admin.ReadTimeout = Duration(DefaultAdminReadTimeout)
	}
	if c.Admin.WriteTimeout == 0 {
		c.Admin.WriteTimeout = Duration(DefaultAdminWriteTimeout)
	}

	d := &c.Diagnostics
	if d.Enabled == nil {
		d.Enabled = boolPtr(true)
	}
	if d.LockOSThread == nil {
		d.LockOSThread = boolPtr(true)
	}
	if d.Workers == 0 {
		d.Workers = DefaultDiagWorkers
	}
	if d.QueueSize == 0 {
		d.QueueSize = DefaultDiagQueueSize
	}
	if d.ReadTimeout == 0 {
		d.ReadTimeout = Duration(DefaultDiagReadTimeout)
	}
	if d.WriteTimeout == 0 {
		d.WriteTimeout = Duration(DefaultDiagWriteTimeout)
	}

	logDefaults := observability.DefaultLogConfig()
	if c.Logging.Level == "" {
		c.Logging.Level = logDefaults.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = logDefaults.Format
	}
	if c.Logging.Output == "" {
		c.Logging.Output = logDefaults.Output
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = DefaultSamplingRate
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
}

// DiagnosticsEnabled reports whether the diagnostics server should run.
func (c *Config) DiagnosticsEnabled() bool {
	return c.Diagnostics.Enabled == nil || *c.Diagnostics.Enabled
}

// DiagnosticsPort returns the diagnostics port, defaulting to the admin
// port plus one.
func (c *Config) DiagnosticsPort() int {
	if c.Diagnostics.Port != 0 {
		return c.Diagnostics.Port
	}
	return c.Admin.Port + 1
}

// DiagnosticsLockOSThread reports whether diagnostics workers pin their
// OS threads.
func (c *Config) DiagnosticsLockOSThread() bool {
	return c.Diagnostics.LockOSThread == nil || *c.Diagnostics.LockOSThread
}

// LogConfig converts the logging section for observability.NewLogger.
func (c *Config) LogConfig() observability.LogConfig {
	return observability.LogConfig{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// TracerConfig converts the tracing section for observability.NewTracer.
func (c *Config) TracerConfig() observability.TracerConfig {
	return observability.TracerConfig{
		ServiceName:  c.Tracing.ServiceName,
		OTLPEndpoint: c.Tracing.OTLPEndpoint,
		SamplingRate: c.Tracing.SamplingRate,
		Enabled:      c.Tracing.Enabled,
	}
}

func boolPtr(v bool) *bool {
	return &v
}
