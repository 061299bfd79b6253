package router

import (
	"context"

	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/service"
)

// DefaultFallbackName labels stats recorded by an unnamed Fallback.
const DefaultFallbackName = "fallback"

// Fallback tries its handlers in order until one answers with a status
// other than 404.
type Fallback struct {
	name     string
	handlers []service.Handler
	stats    observability.StatsReceiver
	logger   observability.Logger
}

// FallbackOption is a functional option for configuring a Fallback.
type FallbackOption func(*Fallback)

// WithName sets the name used to label stats and logs.
func WithName(name string) FallbackOption {
	return func(f *Fallback) {
		f.name = name
	}
}

// WithStats sets the stats receiver. A nil receiver is ignored.
func WithStats(stats observability.StatsReceiver) FallbackOption {
	return func(f *Fallback) {
		if stats != nil {
			f.stats = stats
		}
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger observability.Logger) FallbackOption {
	return func(f *Fallback) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFallback composes handlers. The slice is copied; order is fixed here.
func NewFallback(handlers []service.Handler, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		name:     DefaultFallbackName,
		handlers: append([]service.Handler(nil), handlers...),
		stats:    observability.NopStats(),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Chain composes handlers with default options.
func Chain(handlers ...service.Handler) service.Handler {
	return NewFallback(handlers)
}

// Len returns the number of composed handlers.
func (f *Fallback) Len() int {
	return len(f.handlers)
}

// Serve implements service.Handler.
//
// With no handlers the answer is a bodiless 404. Otherwise each handler is
// called at most once, sequentially; the first non-404 answer wins and the
// last handler's answer is returned as is. A handler error ends the
// dispatch and is returned unchanged. A cancelled ctx stops further
// attempts.
func (f *Fallback) Serve(ctx context.Context, req *service.Request) (*service.Response, error) {
	if len(f.handlers) == 0 {
		return service.NotFound(req.Proto, ""), nil
	}

	last := len(f.handlers) - 1
	for i, h := range f.handlers[:last] {
		resp, err := f.attempt(ctx, h, req)
		if err != nil {
			return nil, err
		}
		if !resp.IsNotFound() {
			return resp, nil
		}

		f.stats.RecordFallthrough(f.name)
		f.logger.Debug("handler declined request",
			observability.String("router", f.name),
			observability.Int("index", i),
			observability.String("path", req.Path),
		)
	}

	return f.attempt(ctx, f.handlers[last], req)
}

func (f *Fallback) attempt(ctx context.Context, h service.Handler, req *service.Request) (*service.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.stats.RecordAttempt(f.name)
	return service.Dispatch(ctx, h, req)
}
