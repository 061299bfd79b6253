// Package router provides the handler registry and the fallback router
// used by the admin and diagnostics servers.
//
// A Registry maps exact route patterns to handlers. It is built once and
// never modified; Filter derives a smaller registry from an allow-list.
//
// A Fallback composes an ordered list of handlers into one. Handlers are
// tried one at a time, in order, with the same request; a 404 answer
// means "try the next one" and any other answer ends the dispatch. When
// every handler answers 404 the last answer is returned unchanged.
// Handler errors are never turned into fallthroughs.
//
// # Usage
//
//	reg, err := router.NewRegistry(
//	    router.Route{Pattern: "/stats.json", Handler: stats},
//	    router.Route{Pattern: "/admin/metrics.json", Handler: metrics},
//	)
//	if err != nil {
//	    return err
//	}
//
//	h := router.NewFallback([]service.Handler{reg.Handler(), index},
//	    router.WithName("admin"),
//	)
package router
