// Package config loads, validates and watches the diagd YAML configuration.
//
// Values may reference environment variables as ${VAR} or ${VAR:-default};
// a literal dollar sign is written as $$. Missing values are filled in by
// ApplyDefaults, so a zero-length file is a valid configuration.
//
// Example:
//
//	admin:
//	  port: 9990
//	  rateLimit:
//	    requestsPerSecond: 50
//	    burst: 100
//	diagnostics:
//	  workers: 1
//	logging:
//	  level: ${DIAGD_LOG_LEVEL:-info}
package config
