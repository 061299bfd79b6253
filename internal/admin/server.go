package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/router"
	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

// Name identifies the server in logs, stats and the shutdown sequence.
const Name = "admin"

// Defaults for Config.
const (
	DefaultPort         = 9990
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 30 * time.Second
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Source discovers the admin handlers to serve.
type Source interface {
	Discover(ctx context.Context) ([]router.Route, error)
}

// RateLimitConfig bounds the request rate of the whole server.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Config holds configuration for the admin server.
type Config struct {
	// Address is the host to bind. Empty binds every interface.
	Address string
	// Port is the port to listen on; zero lets the kernel pick one.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxBodySize bounds request bodies; zero uses service.DefaultMaxBodySize.
	MaxBodySize int64
	// RateLimit is optional.
	RateLimit *RateLimitConfig
}

// Server is the primary admin server.
type Server struct {
	config Config
	source Source
	logger observability.Logger
	stats  observability.StatsReceiver
	tracer *observability.Tracer

	mu       sync.Mutex
	running  bool
	engine   *gin.Engine
	registry *router.Registry
	server   *http.Server
	listener net.Listener
	served   chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStats sets the stats receiver for request and router metrics.
func WithStats(stats observability.StatsReceiver) Option {
	return func(s *Server) {
		if stats != nil {
			s.stats = stats
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *observability.Tracer) Option {
	return func(s *Server) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New creates an admin server serving the routes discovered from source.
func New(cfg Config, source Source, opts ...Option) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = service.DefaultMaxBodySize
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		config: cfg,
		source: source,
		logger: observability.NopLogger(),
		stats:  observability.NopStats(),
		tracer: observability.NewNopTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(observability.String("server", Name))
	return s
}

// ListenAddress returns the address Start binds.
func (c Config) ListenAddress() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Build discovers the routes and assembles the gin engine without binding.
func (s *Server) Build(ctx context.Context) (http.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return s.engine, nil
	}
	if s.source == nil {
		return nil, fmt.Errorf("%s: %w: no handler source", Name, util.ErrInvalidInput)
	}

	routes, err := s.source.Discover(ctx)
	if err != nil {
		return nil, err
	}
	routes = append(routes, router.Route{Pattern: PatternHealth, Handler: health()})

	registry, err := router.NewRegistry(routes...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build registry: %w", Name, err)
	}

	dispatch := router.NewFallback(
		[]service.Handler{registry.Handler(), index(registry)},
		router.WithName(Name),
		router.WithStats(s.stats),
		router.WithLogger(s.logger),
	)

	known := func(path string) bool {
		if registry.Contains(path) {
			return true
		}
		_, ok := indexPaths[path]
		return ok
	}

	engine := gin.New()
	engine.Use(
		RequestID(),
		Tracing(s.tracer),
		Metrics(s.stats, known),
		Logging(s.logger),
		Recovery(s.logger),
	)
	if rl := s.config.RateLimit; rl != nil && rl.RequestsPerSecond > 0 {
		burst := rl.Burst
		if burst < 1 {
			burst = 1
		}
		engine.Use(RateLimit(rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst), s.logger))
	}
	engine.NoRoute(gin.WrapH(service.HTTPHandler(dispatch, s.logger,
		service.WithMaxBodySize(s.config.MaxBodySize))))

	s.engine = engine
	s.registry = registry
	return engine, nil
}

// Start builds the engine, binds the listener and serves in the
// background. A bind failure is returned as a *util.BindError.
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Build(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return util.ErrAlreadyStarted
	}

	addr := s.config.ListenAddress()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return util.NewBindError(addr, err)
	}

	s.listener = ln
	s.served = make(chan struct{})
	s.server = &http.Server{
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.running = true

	go func() {
		defer close(s.served)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server failed", observability.Error(err))
		}
	}()

	s.logger.Info("admin server started",
		observability.String("address", ln.Addr().String()),
		observability.Strings("patterns", s.registry.Patterns()),
	)
	return nil
}

// Stop shuts the server down gracefully. Only the first call has an effect.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		running := s.running
		s.running = false
		s.mu.Unlock()

		if !running {
			return
		}

		s.logger.Info("stopping admin server")
		if err := s.server.Shutdown(ctx); err != nil {
			_ = s.server.Close()
			s.stopErr = fmt.Errorf("failed to shutdown %s server: %w", Name, err)
		}
		<-s.served
	})
	return s.stopErr
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

// Registry returns the registry built by Build, or nil before it.
func (s *Server) Registry() *router.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}
