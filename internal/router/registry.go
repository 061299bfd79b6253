package router

import (
	"context"
	"sort"

	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

// NotFoundMessage is the body of 404 answers produced by a registry.
const NotFoundMessage = "not found"

// Route binds a pattern to a handler.
type Route struct {
	Pattern string
	Handler service.Handler
}

// Registry is an immutable mapping from route pattern to handler.
// Registration order is remembered.
type Registry struct {
	handlers map[string]service.Handler
	order    []string
}

// NewRegistry builds a registry. A pattern appearing twice is rejected
// with a DuplicatePatternError; an invalid pattern or nil handler is
// rejected with a ValidationError.
func NewRegistry(routes ...Route) (*Registry, error) {
	r := &Registry{
		handlers: make(map[string]service.Handler, len(routes)),
		order:    make([]string, 0, len(routes)),
	}

	for _, route := range routes {
		if err := util.ValidatePattern(route.Pattern); err != nil {
			verr := util.NewValidationError("invalid route")
			verr.AddField(route.Pattern, err.Error())
			return nil, verr
		}
		if route.Handler == nil {
			verr := util.NewValidationError("invalid route")
			verr.AddField(route.Pattern, "handler is nil")
			return nil, verr
		}
		if _, exists := r.handlers[route.Pattern]; exists {
			return nil, util.NewDuplicatePatternError(route.Pattern)
		}
		r.handlers[route.Pattern] = route.Handler
		r.order = append(r.order, route.Pattern)
	}

	return r, nil
}

// Lookup returns the handler registered under pattern.
func (r *Registry) Lookup(pattern string) (service.Handler, bool) {
	h, ok := r.handlers[pattern]
	return h, ok
}

// Contains reports whether pattern is registered.
func (r *Registry) Contains(pattern string) bool {
	_, ok := r.handlers[pattern]
	return ok
}

// Len returns the number of routes.
func (r *Registry) Len() int {
	return len(r.order)
}

// Patterns returns the registered patterns in registration order.
func (r *Registry) Patterns() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SortedPatterns returns the registered patterns sorted lexically.
func (r *Registry) SortedPatterns() []string {
	out := r.Patterns()
	sort.Strings(out)
	return out
}

// Routes returns the routes in registration order.
func (r *Registry) Routes() []Route {
	out := make([]Route, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, Route{Pattern: p, Handler: r.handlers[p]})
	}
	return out
}

// Filter returns a registry holding only the routes for which keep
// returns true. The result is always a subset of r.
func (r *Registry) Filter(keep func(pattern string) bool) *Registry {
	out := &Registry{
		handlers: make(map[string]service.Handler),
	}
	for _, p := range r.order {
		if keep(p) {
			out.handlers[p] = r.handlers[p]
			out.order = append(out.order, p)
		}
	}
	return out
}

// FilterPatterns keeps only the routes whose pattern is in allow.
func (r *Registry) FilterPatterns(allow ...string) *Registry {
	set := make(map[string]struct{}, len(allow))
	for _, p := range allow {
		set[p] = struct{}{}
	}
	return r.Filter(func(pattern string) bool {
		_, ok := set[pattern]
		return ok
	})
}

// Handler returns a handler that dispatches on the exact request path and
// answers 404 for unknown paths.
func (r *Registry) Handler() service.Handler {
	return service.HandlerFunc(func(ctx context.Context, req *service.Request) (*service.Response, error) {
		h, ok := r.handlers[req.Path]
		if !ok {
			return service.NotFound(req.Proto, NotFoundMessage), nil
		}
		return h.Serve(ctx, req)
	})
}
