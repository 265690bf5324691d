package hike

import (
	"errors"
	"fmt"
)

// Common errors returned by hike lifecycle and storage operations.
var (
	// ErrSessionAlreadyActive is returned when starting a hike while another is in progress.
	ErrSessionAlreadyActive = errors.New("a hike session is already active")

	// ErrSessionNotFound is returned when a hike session does not exist.
	ErrSessionNotFound = errors.New("hike session not found")

	// ErrSessionNotActive is returned when ending a hike that is not the active one.
	ErrSessionNotActive = errors.New("hike session is not active")

	// ErrRecordingNotFound is returned when a recording does not exist.
	ErrRecordingNotFound = errors.New("recording not found")

	// ErrPhotoNotFound is returned when a photo does not exist.
	ErrPhotoNotFound = errors.New("photo not found")

	// ErrInvalidFields is returned when start, closing or edit fields fail validation.
	ErrInvalidFields = errors.New("invalid hike fields")

	// ErrInvalidID is returned when an identifier is not a UUID.
	ErrInvalidID = errors.New("invalid id format")
)

// AlreadyActiveError carries the id of the session that blocked a start, so
// callers can offer to go to it.
type AlreadyActiveError struct {
	ExistingID string
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSessionAlreadyActive, e.ExistingID)
}

func (e *AlreadyActiveError) Unwrap() error {
	return ErrSessionAlreadyActive
}

// FieldError describes one failed field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalidFields.Error()
	}

	msg := ErrInvalidFields.Error() + ":"
	for i, f := range e.Fields {
		if i > 0 {
			msg += ";"
		}
		msg += " " + f.Field + " " + f.Message
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidFields
}
