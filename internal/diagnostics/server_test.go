package diagnostics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avadiag/internal/lifecycle"
	"github.com/vyrodovalexey/avadiag/internal/plugin"
	"github.com/vyrodovalexey/avadiag/internal/router"
	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

func static(body string) service.Handler {
	return service.Static(service.OK("", body))
}

func testCatalog(t *testing.T) *plugin.Catalog {
	t.Helper()

	c := plugin.NewCatalog()
	require.NoError(t, c.Add("/stats.json", static("stats")))
	require.NoError(t, c.Add("/admin/metrics.json", static("metrics")))
	require.NoError(t, c.Add("/foo.json", static("foo")))
	return c
}

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()

	if opts.Source == nil {
		opts.Source = testCatalog(t)
	}
	opts.Address = "127.0.0.1"

	s := New(opts)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})
	return s
}

func get(t *testing.T, s *Server, path string) (int, string) {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + s.Addr().String() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestFilterRoutes(t *testing.T) {
	t.Parallel()

	routes := []router.Route{
		{Pattern: "/stats.json", Handler: static("a")},
		{Pattern: "/admin/metrics.json", Handler: static("b")},
		{Pattern: "/foo.json", Handler: static("c")},
	}

	got := FilterRoutes(routes, DefaultPatterns)

	require.Len(t, got, 2)
	assert.Equal(t, "/stats.json", got[0].Pattern)
	assert.Equal(t, "/admin/metrics.json", got[1].Pattern)

	assert.Empty(t, FilterRoutes(routes, nil))
	assert.Empty(t, FilterRoutes(nil, DefaultPatterns))
}

func TestOptions_ListenAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{name: "admin port plus one", opts: Options{AdminPort: 9990}, want: ":9991"},
		{name: "explicit port wins", opts: Options{Port: 7000, AdminPort: 9990}, want: ":7000"},
		{name: "ephemeral", opts: Options{Address: "127.0.0.1"}, want: "127.0.0.1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.opts.ListenAddress())
		})
	}
}

func TestServer_ServesAllowListOnly(t *testing.T) {
	t.Parallel()

	s := startServer(t, Options{})

	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, []string{"/stats.json", "/admin/metrics.json"}, s.Registry().Patterns())

	status, body := get(t, s, "/stats.json")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stats", body)

	status, body = get(t, s, "/admin/metrics.json?pretty=true")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "metrics", body)

	status, body = get(t, s, "/foo.json")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, router.NotFoundMessage, body)

	status, _ = get(t, s, "/admin")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_CustomPatterns(t *testing.T) {
	t.Parallel()

	s := startServer(t, Options{Patterns: []string{"/foo.json"}})

	assert.Equal(t, []string{"/foo.json"}, s.Registry().Patterns())
	status, body := get(t, s, "/foo.json")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "foo", body)
}

func TestServer_CloseTwice(t *testing.T) {
	t.Parallel()

	s := startServer(t, Options{})
	addr := s.Addr().String()

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, StateClosed, s.State())
	assert.NoError(t, s.Close(context.Background()))
	assert.Equal(t, StateClosed, s.State())

	_, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)
}

func TestServer_CloseUnstarted(t *testing.T) {
	t.Parallel()

	s := New(Options{Address: "127.0.0.1", Source: testCatalog(t)})

	assert.Equal(t, StateUnstarted, s.State())
	assert.Nil(t, s.Addr())
	assert.Nil(t, s.Registry())
	assert.NoError(t, s.Close(context.Background()))
	assert.Equal(t, StateUnstarted, s.State())

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})
	assert.Equal(t, StateRunning, s.State())

	status, body := get(t, s, "/stats.json")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stats", body)
}

func TestServer_StartAfterClose(t *testing.T) {
	t.Parallel()

	s := startServer(t, Options{})
	require.NoError(t, s.Close(context.Background()))

	assert.ErrorIs(t, s.Start(context.Background()), util.ErrClosed)
	assert.Equal(t, StateClosed, s.State())
}

func TestServer_StartTwice(t *testing.T) {
	t.Parallel()

	s := startServer(t, Options{})
	assert.ErrorIs(t, s.Start(context.Background()), util.ErrAlreadyStarted)
}

func TestServer_RegistersClose(t *testing.T) {
	t.Parallel()

	group := lifecycle.NewGroup(nil)
	s := startServer(t, Options{RegisterClose: group.Register})

	assert.Equal(t, 1, group.Len())
	require.NoError(t, group.Close(context.Background()))
	assert.Equal(t, StateClosed, s.State())
}

func TestServer_RegistersCloseWithClosedHost(t *testing.T) {
	t.Parallel()

	group := lifecycle.NewGroup(nil)
	require.NoError(t, group.Close(context.Background()))

	s := New(Options{
		Address:       "127.0.0.1",
		Source:        testCatalog(t),
		RegisterClose: group.Register,
	})

	started := make(chan error, 1)
	go func() {
		started <- s.Start(context.Background())
	}()

	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return")
	}

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, group.Len())
}

func TestServer_BindFailure(t *testing.T) {
	t.Parallel()

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	port := taken.Addr().(*net.TCPAddr).Port
	s := New(Options{
		Address: "127.0.0.1",
		Port:    port,
		Source:  testCatalog(t),
	})

	err = s.Start(context.Background())
	require.Error(t, err)

	var bindErr *util.BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), bindErr.Address)
	assert.Equal(t, StateUnstarted, s.State())
}

func TestServer_DiscoveryFailure(t *testing.T) {
	t.Parallel()

	c := plugin.NewCatalog()
	require.NoError(t, c.AddFactory("/stats.json", func(context.Context) (service.Handler, error) {
		return nil, errors.New("boom")
	}))

	s := New(Options{Address: "127.0.0.1", Source: c})
	err := s.Start(context.Background())

	assert.ErrorIs(t, err, util.ErrDiscovery)
	assert.Equal(t, StateUnstarted, s.State())
}

func TestServer_NoSource(t *testing.T) {
	t.Parallel()

	err := New(Options{}).Start(context.Background())
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unstarted", StateUnstarted.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
