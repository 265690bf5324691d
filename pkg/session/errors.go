package session

import "errors"

// Common errors returned by the session manager. Lifecycle errors live in
// the hike package so stores and callers share them.
var (
	// ErrNilStore is returned when the manager is constructed without a store.
	ErrNilStore = errors.New("session manager requires a store")

	// ErrAmbiguousID is returned when an id prefix matches several sessions.
	ErrAmbiguousID = errors.New("id prefix matches more than one session")
)
