// Package lifecycle collects shutdown hooks registered during startup and
// runs them once when the host process tears down.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/vyrodovalexey/avadiag/internal/observability"
)

// CloseFunc releases a component.
type CloseFunc func(ctx context.Context) error

// RegisterFunc is how components register themselves for shutdown.
type RegisterFunc func(name string, fn CloseFunc)

type closer struct {
	name string
	fn   CloseFunc
}

// Group runs registered closers in reverse registration order.
type Group struct {
	mu      sync.Mutex
	closers []closer
	closed  bool
	logger  observability.Logger
}

// NewGroup creates an empty Group.
func NewGroup(logger observability.Logger) *Group {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Group{logger: logger}
}

// Register adds a closer. Registering after Close runs fn immediately
// with a background context.
func (g *Group) Register(name string, fn CloseFunc) {
	g.mu.Lock()
	if !g.closed {
		g.closers = append(g.closers, closer{name: name, fn: fn})
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	if err := fn(context.Background()); err != nil {
		g.logger.Error("late closer failed", observability.String("name", name), observability.Error(err))
	}
}

// Len returns the number of pending closers.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.closers)
}

// Close runs every closer once, last registered first, and returns the
// combined errors. Later calls return nil.
func (g *Group) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	closers := g.closers
	g.closers = nil
	g.mu.Unlock()

	var errs error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		g.logger.Info("closing component", observability.String("name", c.name))
		if err := c.fn(ctx); err != nil {
			g.logger.Error("failed to close component",
				observability.String("name", c.name),
				observability.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errs
}
