package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/avadiag/internal/encoding"
	"github.com/vyrodovalexey/avadiag/internal/router"
	"github.com/vyrodovalexey/avadiag/internal/service"
)

// Fixed routes served by every admin server.
const (
	PatternHealth = "/health"
	PatternIndex  = "/admin"
)

// HealthBody is the body of a healthy /health answer.
const HealthBody = "ok"

var indexPaths = map[string]struct{}{
	PatternIndex:                       {},
	PatternIndex + "/":                 {},
	PatternIndex + encoding.SuffixJSON: {},
	PatternIndex + encoding.SuffixHTML: {},
}

// health answers "ok" for as long as the server is able to dispatch.
func health() service.Handler {
	return service.HandlerFunc(func(_ context.Context, req *service.Request) (*service.Response, error) {
		return service.OK(req.Proto, HealthBody), nil
	})
}

type indexJSON struct {
	Routes []string `json:"routes"`
}

// index lists the routes of registry as JSON, HTML or plain text. Any
// path other than the index paths is answered with 404 so a fallback
// router moves on.
func index(registry *router.Registry) service.Handler {
	return service.HandlerFunc(func(_ context.Context, req *service.Request) (*service.Response, error) {
		if _, ok := indexPaths[req.Path]; !ok {
			return service.NotFound(req.Proto, router.NotFoundMessage), nil
		}

		routes := registry.SortedPatterns()
		switch {
		case encoding.ExpectsJSON(req):
			return service.JSON(http.StatusOK, req.Proto, indexJSON{Routes: routes},
				req.Params.Get("pretty") == "true")
		case encoding.ExpectsHTML(req):
			return service.HTML(http.StatusOK, req.Proto, "admin", strings.Join(routes, "\n")), nil
		default:
			return service.OK(req.Proto, strings.Join(routes, "\n")+"\n"), nil
		}
	})
}
