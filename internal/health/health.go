package health

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vyrodovalexey/avadiag/internal/encoding"
	"github.com/vyrodovalexey/avadiag/internal/service"
)

// PatternReady is the route pattern of the readiness probe.
const PatternReady = "/ready"

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the component is degraded but operational.
	StatusDegraded Status = "degraded"
)

// Check represents an individual check result.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc performs a check.
type CheckFunc func(ctx context.Context) Check

// ReadinessResponse is the readiness probe document.
type ReadinessResponse struct {
	Status    Status           `json:"status"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Checker runs registered checks.
type Checker struct {
	version   string
	startTime time.Time
	checks    map[string]CheckFunc
	mu        sync.RWMutex
}

// NewChecker creates a new health checker.
func NewChecker(version string) *Checker {
	return &Checker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// RegisterCheck registers a check, replacing any check with the same name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Readiness runs every check. Any unhealthy check makes the whole
// response unhealthy; otherwise any degraded check makes it degraded.
func (c *Checker) Readiness(ctx context.Context) ReadinessResponse {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	response := ReadinessResponse{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Checks:    make(map[string]Check, len(checks)),
		Timestamp: time.Now(),
	}

	for name, fn := range checks {
		check := fn(ctx)
		response.Checks[name] = check

		switch {
		case check.Status == StatusUnhealthy:
			response.Status = StatusUnhealthy
		case check.Status == StatusDegraded && response.Status != StatusUnhealthy:
			response.Status = StatusDegraded
		}
	}

	return response
}

// Handler serves the readiness probe: JSON when the caller expects JSON,
// otherwise one "name: status" line per check under the overall status.
func (c *Checker) Handler() service.Handler {
	return service.HandlerFunc(func(ctx context.Context, req *service.Request) (*service.Response, error) {
		response := c.Readiness(ctx)

		status := http.StatusOK
		if response.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		if encoding.ExpectsJSON(req) {
			return service.JSON(status, req.Proto, response, false)
		}

		names := make([]string, 0, len(response.Checks))
		for name := range response.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		var sb strings.Builder
		sb.WriteString(string(response.Status))
		sb.WriteString("\n")
		for _, name := range names {
			check := response.Checks[name]
			sb.WriteString(name + ": " + string(check.Status))
			if check.Message != "" {
				sb.WriteString(" (" + check.Message + ")")
			}
			sb.WriteString("\n")
		}
		return service.Error(status, req.Proto, sb.String()), nil
	})
}
