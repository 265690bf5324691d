// Package watcher reports changes to sync inbox files.
//
// It wraps fsnotify, keeps only files with the configured extension, and
// coalesces bursts of writes to the same file into one event.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{Debounce: 250 * time.Millisecond}, log)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, inboxDir); err != nil {
//	    return err
//	}
//	for ev := range w.Events() {
//	    importer.ImportFile(ctx, ev.Path)
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a debounced change to one inbox file.
type Event struct {
	// Path is the file that changed.
	Path string

	// Op is the last operation seen within the debounce window.
	Op Op

	// Timestamp is when the debounced event was emitted.
	Timestamp time.Time
}

// Watcher monitors inbox directories.
type Watcher interface {
	// Start watches dirs, creating them if they do not exist, and returns
	// once the watches are registered. Processing stops when ctx is done
	// or Close is called.
	Start(ctx context.Context, dirs ...string) error

	// Events returns debounced file events. Closed by Close.
	Events() <-chan Event

	// Errors returns non-fatal watch errors. Closed by Close.
	Errors() <-chan error

	// Close stops watching and releases resources. Safe to call twice.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// Debounce is the quiet period before an event for a file is emitted.
	// Default: 100ms.
	Debounce time.Duration

	// Extension selects the files to report. Default: ".jsonl".
	Extension string

	// CircuitBreakerThreshold is the number of consecutive fsnotify errors
	// after which the watcher reports ErrCircuitBreakerOpen and stops.
	// Default: 5.
	CircuitBreakerThreshold int
}
