package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/vyrodovalexey/avadiag/internal/executor"
	"github.com/vyrodovalexey/avadiag/internal/exporter"
	"github.com/vyrodovalexey/avadiag/internal/lifecycle"
	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/router"
	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

// Name identifies the server in logs, stats and the shutdown sequence.
const Name = "diagnostics"

// DefaultPatterns is the allow-list of routes served on the diagnostics port.
var DefaultPatterns = []string{
	exporter.PatternStats,
	exporter.PatternMetrics,
	exporter.PatternPerHostMetrics,
}

// Default timeouts.
const (
	DefaultReadTimeout  = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Source discovers the process-wide set of diagnostic handlers.
type Source interface {
	Discover(ctx context.Context) ([]router.Route, error)
}

// Options configures a Server.
type Options struct {
	// Address is the host to bind. Empty binds every interface.
	Address string

	// Port is the port to listen on. When zero, AdminPort+1 is used; when
	// both are zero the kernel picks a free port.
	Port int

	// AdminPort is the primary admin server's port.
	AdminPort int

	// Source provides the handlers to filter.
	Source Source

	// Patterns overrides DefaultPatterns.
	Patterns []string

	// RegisterClose registers Close with the host's shutdown sequence.
	RegisterClose lifecycle.RegisterFunc

	Logger observability.Logger

	// Worker pool sizing, see executor.Config.
	Workers      int
	QueueSize    int
	LockOSThread bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// State is the lifecycle state of a Server.
type State int32

// Server states.
const (
	StateUnstarted State = iota
	StateRunning
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Server is the isolated diagnostics server.
type Server struct {
	opts   Options
	logger observability.Logger
	stats  observability.StatsReceiver
	tracer *observability.Tracer

	mu       sync.Mutex
	state    State
	registry *router.Registry
	pool     *executor.Pool
	server   *http.Server
	listener net.Listener
	served   chan struct{}
}

// New creates a Server. Nothing is bound until Start.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = DefaultPatterns
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	return &Server{
		opts:   opts,
		logger: opts.Logger.With(observability.String("server", Name)),
		stats:  observability.NopStats(),
		tracer: observability.NewNopTracer(),
	}
}

// FilterRoutes keeps the routes whose pattern is in allow, in their
// original order.
func FilterRoutes(routes []router.Route, allow []string) []router.Route {
	set := make(map[string]struct{}, len(allow))
	for _, p := range allow {
		set[p] = struct{}{}
	}

	out := make([]router.Route, 0, len(allow))
	for _, r := range routes {
		if _, ok := set[r.Pattern]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ListenAddress returns the address Start binds.
func (o Options) ListenAddress() string {
	port := o.Port
	if port == 0 && o.AdminPort > 0 {
		port = o.AdminPort + 1
	}
	return net.JoinHostPort(o.Address, strconv.Itoa(port))
}

// Start discovers handlers, builds the private registry and worker pool,
// binds the listener and serves in the background. A bind failure is
// returned as a *util.BindError and leaves the server unstarted.
//
// Close is registered with RegisterClose after the server is running and
// without holding the server lock, so a host that is already shutting down
// may close the server before Start returns.
func (s *Server) Start(ctx context.Context) error {
	if err := s.start(ctx); err != nil {
		return err
	}

	if s.opts.RegisterClose != nil {
		s.opts.RegisterClose(Name, s.Close)
	}
	return nil
}

func (s *Server) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return util.ErrAlreadyStarted
	case StateClosed:
		return util.ErrClosed
	}

	if s.opts.Source == nil {
		return fmt.Errorf("%s: %w: no handler source", Name, util.ErrInvalidInput)
	}

	routes, err := s.opts.Source.Discover(ctx)
	if err != nil {
		return err
	}

	registry, err := router.NewRegistry(FilterRoutes(routes, s.opts.Patterns)...)
	if err != nil {
		return fmt.Errorf("%s: failed to build registry: %w", Name, err)
	}

	pool := executor.New(executor.Config{
		Name:         Name,
		Workers:      s.opts.Workers,
		QueueSize:    s.opts.QueueSize,
		LockOSThread: s.opts.LockOSThread,
	}, s.logger)
	if err := pool.Start(); err != nil {
		return err
	}

	addr := s.opts.ListenAddress()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		pool.Close()
		return util.NewBindError(addr, err)
	}

	dispatch := router.NewFallback(
		[]service.Handler{registry.Handler()},
		router.WithName(Name),
		router.WithStats(s.stats),
		router.WithLogger(s.logger),
	)

	s.registry = registry
	s.pool = pool
	s.listener = ln
	s.served = make(chan struct{})
	s.server = &http.Server{
		Handler:      pool.Handler(s.traced(service.HTTPHandler(dispatch, s.logger))),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}
	s.state = StateRunning

	go s.serve()

	s.logger.Info("diagnostics server started",
		observability.String("address", ln.Addr().String()),
		observability.Strings("patterns", registry.Patterns()),
		observability.Int("workers", pool.Workers()),
	)
	return nil
}

func (s *Server) serve() {
	defer close(s.served)

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("diagnostics server failed", observability.Error(err))
	}
}

// traced wraps next in a span. The tracer is a no-op so nothing is recorded.
func (s *Server) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.StartSpan(r.Context(), Name+" "+r.URL.Path)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Close stops accepting connections, waits for in-flight requests and
// stops the worker pool. Only a running server moves to Closed; closing an
// unstarted or closed server is a no-op and leaves its state unchanged.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.logger.Info("stopping diagnostics server")

	err := s.server.Shutdown(ctx)
	if err != nil {
		// Force remaining connections closed so the pool can drain.
		_ = s.server.Close()
	}
	<-s.served
	s.pool.Close()

	if err != nil {
		return fmt.Errorf("failed to shutdown %s server: %w", Name, err)
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Registry returns the private registry, or nil before Start.
func (s *Server) Registry() *router.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}
