package store

import "errors"

// Common errors returned by stores. Lookups of missing entities return the
// hike package sentinels (hike.ErrSessionNotFound and friends).
var (
	// ErrDuplicateID is returned when inserting an entity whose id exists.
	ErrDuplicateID = errors.New("entity id already exists")

	// ErrUnknownDriver is returned by Open for an unrecognized driver.
	ErrUnknownDriver = errors.New("unknown storage driver")

	// ErrInvalidEntity is returned for nil entities or empty ids.
	ErrInvalidEntity = errors.New("invalid entity")
)
