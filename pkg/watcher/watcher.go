package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/hikelog/pkg/logger"
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	events chan Event
	errors chan error

	// mu guards running, closed and the channel closes; timer callbacks
	// hold the read lock while sending.
	mu      sync.RWMutex
	running bool
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	loop      sync.WaitGroup

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
	pendingOps     map[string]Op

	failureCount int
}

// New creates a new inbox watcher.
//
// Parameters:
//   - cfg: Watcher configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Watcher
//   - Error if the fsnotify watcher cannot be created
func New(cfg Config, log logger.Logger) (Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if cfg.Extension == "" {
		cfg.Extension = ".jsonl"
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &watcher{
		fsw:            fsw,
		logger:         log.Component("watcher"),
		config:         cfg,
		events:         make(chan Event, 100),
		errors:         make(chan error, 10),
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
		pendingOps:     make(map[string]Op),
	}

	w.logger.Debug("inbox watcher created",
		"debounce", cfg.Debounce,
		"extension", cfg.Extension)

	return w, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context, dirs ...string) error {
	if len(dirs) == 0 {
		return ErrNoPaths
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create watch directory %s: %w", dir, err)
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Debug("added watch path", "path", dir)
	}

	w.logger.Info("watcher started", "paths", dirs)

	w.loop.Add(1)
	go w.processEvents(ctx)

	return nil
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	var closeErr error

	w.closeOnce.Do(func() {
		close(w.done)
		closeErr = w.fsw.Close()
		w.loop.Wait()

		w.debounceMu.Lock()
		for _, timer := range w.debounceTimers {
			timer.Stop()
		}
		w.debounceTimers = nil
		w.debounceMu.Unlock()

		w.mu.Lock()
		w.closed = true
		w.running = false
		close(w.events)
		close(w.errors)
		w.mu.Unlock()

		w.logger.Debug("watcher closed")
	})

	if closeErr != nil {
		return fmt.Errorf("failed to close watcher: %w", closeErr)
	}
	return nil
}

// processEvents handles events from fsnotify.
func (w *watcher) processEvents(ctx context.Context) {
	defer w.loop.Done()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("event processing stopped", "reason", "context cancelled")
			return

		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.handleError(err) {
				return
			}
		}
	}
}

// handleEvent filters and debounces a single fsnotify event.
func (w *watcher) handleEvent(event fsnotify.Event) {
	if !strings.EqualFold(filepath.Ext(event.Name), w.config.Extension) {
		return
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	w.failureCount = 0
	w.debounce(event.Name, op)
}

// debounce restarts the quiet-period timer for path. A create within the
// window is reported as a create even if writes follow.
func (w *watcher) debounce(path string, op Op) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimers == nil {
		return
	}

	if prev, ok := w.pendingOps[path]; !ok || prev != OpCreate || op == OpRemove {
		w.pendingOps[path] = op
	}

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}

	w.debounceTimers[path] = time.AfterFunc(w.config.Debounce, func() {
		w.debounceMu.Lock()
		emitOp := w.pendingOps[path]
		delete(w.pendingOps, path)
		if w.debounceTimers != nil {
			delete(w.debounceTimers, path)
		}
		w.debounceMu.Unlock()

		w.emit(Event{Path: path, Op: emitOp, Timestamp: time.Now()})
	})
}

func (w *watcher) emit(ev Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return
	}

	select {
	case w.events <- ev:
	case <-w.done:
	}
}

// handleError reports err and returns true once the circuit breaker opens.
func (w *watcher) handleError(err error) bool {
	w.failureCount++

	w.logger.Warn("fsnotify error",
		"error", err,
		"failure_count", w.failureCount)

	report := err
	open := w.failureCount >= w.config.CircuitBreakerThreshold
	if open {
		w.logger.Error("circuit breaker opened",
			"threshold", w.config.CircuitBreakerThreshold)
		report = ErrCircuitBreakerOpen
	}

	w.mu.RLock()
	if !w.closed {
		select {
		case w.errors <- report:
		default:
			w.logger.Warn("error channel full, dropping error")
		}
	}
	w.mu.RUnlock()

	return open
}
