package router

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	stats := okHandler("stats")
	metrics := okHandler("metrics")

	reg, err := NewRegistry(
		Route{Pattern: "/stats.json", Handler: stats},
		Route{Pattern: "/admin/metrics.json", Handler: metrics},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"/stats.json", "/admin/metrics.json"}, reg.Patterns())
	assert.Equal(t, []string{"/admin/metrics.json", "/stats.json"}, reg.SortedPatterns())
	assert.True(t, reg.Contains("/stats.json"))
	assert.False(t, reg.Contains("/foo.json"))

	h, ok := reg.Lookup("/admin/metrics.json")
	require.True(t, ok)
	assert.Same(t, metrics, h)

	routes := reg.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "/stats.json", routes[0].Pattern)
}

func TestNewRegistry_DuplicateRejected(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(
		Route{Pattern: "/stats.json", Handler: okHandler("a")},
		Route{Pattern: "/stats.json", Handler: okHandler("b")},
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrDuplicatePattern)

	var dup *util.DuplicatePatternError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "/stats.json", dup.Pattern)
}

func TestNewRegistry_InvalidRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		route Route
	}{
		{name: "empty pattern", route: Route{Pattern: "", Handler: okHandler("")}},
		{name: "relative pattern", route: Route{Pattern: "stats.json", Handler: okHandler("")}},
		{name: "nil handler", route: Route{Pattern: "/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewRegistry(tt.route)
			assert.ErrorIs(t, err, util.ErrInvalidInput)
		})
	}
}

func TestRegistry_Filter(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		Route{Pattern: "/stats.json", Handler: okHandler("")},
		Route{Pattern: "/admin/metrics.json", Handler: okHandler("")},
		Route{Pattern: "/foo.json", Handler: okHandler("")},
	)
	require.NoError(t, err)

	filtered := reg.FilterPatterns("/stats.json", "/admin/metrics.json", "/admin/per_host_metrics.json")

	assert.Equal(t, []string{"/stats.json", "/admin/metrics.json"}, filtered.Patterns())
	assert.False(t, filtered.Contains("/foo.json"))
	assert.False(t, filtered.Contains("/admin/per_host_metrics.json"))
	assert.Equal(t, 3, reg.Len(), "source registry is untouched")

	none := reg.Filter(func(string) bool { return false })
	assert.Equal(t, 0, none.Len())
}

func TestRegistry_Handler(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(Route{Pattern: "/stats.json", Handler: okHandler("stats")})
	require.NoError(t, err)
	h := reg.Handler()

	resp, err := h.Serve(context.Background(), service.NewRequest("GET", "/stats.json?pretty=true"))
	require.NoError(t, err)
	assert.Equal(t, "stats", resp.BodyString())

	resp, err = h.Serve(context.Background(), service.NewRequest("GET", "/stats.json/extra"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status())
	assert.Equal(t, NotFoundMessage, resp.BodyString())
}

func TestRegistry_EmptyHandlerAlwaysNotFound(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry()
	require.NoError(t, err)

	resp, err := reg.Handler().Serve(context.Background(), service.NewRequest("GET", "/"))
	require.NoError(t, err)
	assert.True(t, resp.IsNotFound())
}
