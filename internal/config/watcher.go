package config

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avadiag/internal/observability"
)

// DefaultDebounceDelay coalesces bursts of file events into one reload.
const DefaultDebounceDelay = 100 * time.Millisecond

// ChangeFunc receives the configuration in effect before a reload and the
// one that replaced it.
type ChangeFunc func(previous, current *Config)

// Watcher reloads the configuration file when it changes. A file that fails
// to load is logged and ignored; the callback only sees valid
// configurations that differ from the current one.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	onChange ChangeFunc
	logger   observability.Logger
	debounce time.Duration

	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	timer   *time.Timer
	started bool
	stopped bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a watcher for the file at path.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		fs:       fsWatcher,
		onChange: onChange,
		logger:   observability.NopLogger(),
		debounce: DefaultDebounceDelay,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the file once and then watches its directory, so editors
// that replace the file by rename are noticed too.
func (w *Watcher) Start(ctx context.Context) error {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		return err
	}

	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.current = cfg
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching configuration file", observability.String("path", w.path))

	go w.loop(ctx)
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		started := w.started
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		close(w.stopCh)
		if started {
			<-w.doneCh
		}
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == w.path && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", observability.Error(err))
		}
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Error("failed to reload configuration",
			observability.String("path", w.path),
			observability.Error(err),
		)
		return
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	previous := w.current
	w.current = cfg
	w.mu.Unlock()

	if reflect.DeepEqual(previous, cfg) {
		w.logger.Debug("configuration unchanged", observability.String("path", w.path))
		return
	}

	w.logger.Info("configuration reloaded", observability.String("path", w.path))
	if w.onChange != nil {
		w.onChange(previous, cfg)
	}
}
