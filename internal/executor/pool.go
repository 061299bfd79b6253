package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

// Defaults applied by New.
const (
	DefaultWorkers   = 1
	DefaultQueueSize = 64
)

// Config holds configuration for a Pool.
type Config struct {
	// Name identifies the pool in logs.
	Name string

	// Workers is the number of worker goroutines.
	Workers int

	// QueueSize is the number of jobs that may wait for a worker.
	QueueSize int

	// LockOSThread pins each worker to its own OS thread.
	LockOSThread bool
}

// job states.
const (
	jobPending int32 = iota
	jobRunning
	jobAbandoned
)

// PanicError is returned by Do when the submitted function panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

func isAbort(v any) bool {
	err, ok := v.(error)
	return ok && errors.Is(err, http.ErrAbortHandler)
}

type job struct {
	ctx      context.Context
	fn       func()
	state    atomic.Int32
	finished chan struct{}
	panicked any
}

// pool states.
const (
	poolNew int32 = iota
	poolRunning
	poolClosed
)

// Pool is a fixed-size worker pool with its own queue.
type Pool struct {
	config Config
	logger observability.Logger
	jobs   chan *job
	done   chan struct{}
	state  atomic.Int32
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates a pool. Zero values in cfg fall back to the defaults.
func New(cfg Config, logger observability.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	} else if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Pool{
		config: cfg,
		logger: logger.With(observability.String("pool", cfg.Name)),
		jobs:   make(chan *job, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state.Load() {
	case poolRunning:
		return util.ErrAlreadyStarted
	case poolClosed:
		return util.ErrPoolClosed
	}

	p.wg.Add(p.config.Workers)
	for i := 0; i < p.config.Workers; i++ {
		go p.worker(i)
	}
	p.state.Store(poolRunning)

	p.logger.Debug("worker pool started",
		observability.Int("workers", p.config.Workers),
		observability.Int("queue_size", p.config.QueueSize),
		observability.Bool("lock_os_thread", p.config.LockOSThread),
	)
	return nil
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.config.Workers
}

// Pending returns the number of queued jobs not yet picked by a worker.
func (p *Pool) Pending() int {
	return len(p.jobs)
}

// Running reports whether the pool accepts work.
func (p *Pool) Running() bool {
	return p.state.Load() == poolRunning
}

// Do runs fn on a worker and waits for it to finish.
//
// If ctx ends or the pool closes before a worker picks fn up, fn is
// abandoned and the corresponding error is returned. Once fn has started,
// Do always waits for it to return.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	switch p.state.Load() {
	case poolNew:
		return util.ErrNotStarted
	case poolClosed:
		return util.ErrPoolClosed
	}

	j := &job{ctx: ctx, fn: fn, finished: make(chan struct{})}

	select {
	case p.jobs <- j:
	case <-p.done:
		return util.ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-j.finished:
		return j.result()
	case <-ctx.Done():
		return p.abandon(j, ctx.Err())
	case <-p.done:
		return p.abandon(j, util.ErrPoolClosed)
	}
}

// abandon gives up on j unless a worker already started it, in which case
// it waits for j to finish.
func (p *Pool) abandon(j *job, reason error) error {
	if j.state.CompareAndSwap(jobPending, jobAbandoned) {
		return reason
	}
	<-j.finished
	return j.result()
}

func (j *job) result() error {
	if j.panicked != nil {
		return &PanicError{Value: j.panicked}
	}
	return nil
}

// Close stops the workers and waits for running jobs. Queued jobs are
// abandoned. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	prev := p.state.Swap(poolClosed)
	if prev != poolClosed {
		close(p.done)
	}
	p.mu.Unlock()

	if prev == poolClosed {
		return
	}

	p.wg.Wait()
	p.logger.Debug("worker pool closed")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	if p.config.LockOSThread {
		// Never unlocked: the thread exits together with the worker.
		runtime.LockOSThread()
	}

	for {
		select {
		case <-p.done:
			return
		case j := <-p.jobs:
			p.run(id, j)
		}
	}
}

func (p *Pool) run(id int, j *job) {
	if j.ctx.Err() != nil || !j.state.CompareAndSwap(jobPending, jobRunning) {
		return
	}

	defer close(j.finished)
	defer func() {
		if r := recover(); r != nil {
			j.panicked = r
			if isAbort(r) {
				return
			}
			p.logger.Error("job panicked",
				observability.Int("worker", id),
				observability.Any("panic", r),
			)
		}
	}()

	j.fn()
}

// Handler returns an http.Handler that serves every request on the pool.
// A request abandoned before reaching a worker gets a 503 and a panicking
// handler a 500. http.ErrAbortHandler is re-raised on the connection's
// goroutine so net/http aborts the response.
func (p *Pool) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := p.Do(r.Context(), func() {
			next.ServeHTTP(w, r)
		})
		if err == nil {
			return
		}

		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			if isAbort(panicErr.Value) {
				panic(http.ErrAbortHandler)
			}
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
		if util.IsClosed(err) {
			writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		p.logger.Debug("request abandoned",
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		if r.Context().Err() == nil {
			writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
		}
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	_, _ = service.Error(status, r.Proto, message).WriteTo(w)
}
