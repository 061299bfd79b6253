// Package plugin is the process-wide catalog of discoverable admin
// handlers. Components register a handler, or a factory building one,
// under a route pattern; servers discover the whole set at startup.
//
//	plugin.MustRegister("/stats.json", statsHandler)
//	routes, err := plugin.Default().Discover(ctx)
package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/vyrodovalexey/avadiag/internal/router"
	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

// Factory builds a handler during discovery.
type Factory func(ctx context.Context) (service.Handler, error)

type entry struct {
	pattern string
	factory Factory
}

// Catalog holds handler registrations in registration order.
type Catalog struct {
	mu      sync.RWMutex
	entries []entry
	index   map[string]struct{}
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]struct{})}
}

// Add registers a ready-made handler.
func (c *Catalog) Add(pattern string, h service.Handler) error {
	if h == nil {
		return fmt.Errorf("plugin %s: %w: handler is nil", pattern, util.ErrInvalidInput)
	}
	return c.AddFactory(pattern, func(context.Context) (service.Handler, error) {
		return h, nil
	})
}

// AddFactory registers a factory invoked on every Discover.
func (c *Catalog) AddFactory(pattern string, f Factory) error {
	if err := util.ValidatePattern(pattern); err != nil {
		return fmt.Errorf("plugin %s: %w: %v", pattern, util.ErrInvalidInput, err)
	}
	if f == nil {
		return fmt.Errorf("plugin %s: %w: factory is nil", pattern, util.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.index[pattern]; exists {
		return util.NewDuplicatePatternError(pattern)
	}
	c.index[pattern] = struct{}{}
	c.entries = append(c.entries, entry{pattern: pattern, factory: f})
	return nil
}

// Patterns returns the registered patterns in registration order.
func (c *Catalog) Patterns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.pattern)
	}
	return out
}

// Discover builds every registered handler. Any factory failure fails the
// whole discovery.
func (c *Catalog) Discover(ctx context.Context) ([]router.Route, error) {
	c.mu.RLock()
	entries := make([]entry, len(c.entries))
	copy(entries, c.entries)
	c.mu.RUnlock()

	routes := make([]router.Route, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := e.factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", util.ErrDiscovery, e.pattern, err)
		}
		if h == nil {
			return nil, fmt.Errorf("%w: %s: factory returned nil handler", util.ErrDiscovery, e.pattern)
		}
		routes = append(routes, router.Route{Pattern: e.pattern, Handler: h})
	}
	return routes, nil
}

var defaultCatalog = NewCatalog()

// Default returns the process-wide catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Register adds h to the process-wide catalog.
func Register(pattern string, h service.Handler) error {
	return defaultCatalog.Add(pattern, h)
}

// MustRegister is like Register but panics on error.
func MustRegister(pattern string, h service.Handler) {
	if err := Register(pattern, h); err != nil {
		panic(err)
	}
}
