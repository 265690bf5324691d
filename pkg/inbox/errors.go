package inbox

import "errors"

var (
	// ErrMalformedRecord is returned for a line that is not a valid inbox record.
	ErrMalformedRecord = errors.New("malformed inbox record")

	// ErrFileTooLarge is returned when an inbox file exceeds the size limit.
	ErrFileTooLarge = errors.New("inbox file too large")

	// ErrNilDependency is returned when the importer is built without a store or manager.
	ErrNilDependency = errors.New("importer requires a store and a session manager")
)
