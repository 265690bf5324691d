package watcher

import "errors"

// Common errors returned by the watcher.
var (
	// ErrWatcherClosed is returned when attempting to use a closed watcher.
	ErrWatcherClosed = errors.New("watcher is closed")

	// ErrAlreadyStarted is returned when Start is called on a running watcher.
	ErrAlreadyStarted = errors.New("watcher already started")

	// ErrCircuitBreakerOpen is reported after too many consecutive errors.
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")

	// ErrNoPaths is returned when Start is called without directories.
	ErrNoPaths = errors.New("no watch directories")
)
