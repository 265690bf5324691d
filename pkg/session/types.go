// Package session owns the hike lifecycle: it gates creation of new hike
// sessions, owns the InProgress -> Completed transition and signals a
// Lifecycle listener (the reminder scheduler) at both transitions.
//
// The manager holds the process-wide active session id. It is the sole
// authority for "is a hike in progress"; the store may transiently disagree
// and Reconcile heals the id after external changes.
//
// Example usage:
//
//	mgr, err := session.New(st, session.Config{
//	    Lifecycle: scheduler,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	id, err := mgr.Start(ctx, hike.StartFields{StartMood: 6, Title: "Ridge loop"})
//	var active *hike.AlreadyActiveError
//	if errors.As(err, &active) {
//	    fmt.Println("already hiking:", active.ExistingID)
//	}
package session

import (
	"context"
	"time"

	"github.com/0xmhha/hikelog/pkg/clock"
	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/store"
)

// Lifecycle receives session transitions. Calls are fire-and-forget:
// implementations must return promptly and handle their own failures.
// They are made in transition order with the manager lock held, so they
// must not call back into the manager.
type Lifecycle interface {
	// OnSessionStarted is called after a session start is persisted.
	OnSessionStarted(startedAt time.Time)

	// OnSessionEnded is called after a session completion is persisted.
	OnSessionEnded(endedAt time.Time)
}

// Config contains manager configuration.
type Config struct {
	// Clock supplies timestamps (default: clock.Real).
	Clock clock.Clock

	// Lifecycle is notified of transitions (optional).
	Lifecycle Lifecycle
}

// Manager provides hike session lifecycle and CRUD operations.
type Manager interface {
	// Start creates a new in-progress session and makes it active.
	//
	// Returns:
	//   - The new session id
	//   - *hike.AlreadyActiveError if a session is already active
	//   - hike.ValidationError for bad fields
	//   - Error for store failures (nothing is left half-applied)
	Start(ctx context.Context, fields hike.StartFields) (string, error)

	// End completes the active session in a single save.
	//
	// Returns error if:
	//   - The session does not exist (hike.ErrSessionNotFound)
	//   - It is completed or not the active one (hike.ErrSessionNotActive)
	//   - Closing fields are invalid
	//   - The store write fails
	End(ctx context.Context, id string, fields hike.ClosingFields) error

	// Reconcile clears the active id when no in-progress session with that
	// id is among sessions. Reports whether it cleared the id.
	// Calling it twice with the same input never changes state the second time.
	Reconcile(ctx context.Context, sessions []*hike.Session) bool

	// ReconcileFromStore runs Reconcile against every stored session.
	ReconcileFromStore(ctx context.Context) (bool, error)

	// ActiveSessionID returns a snapshot of the active id.
	ActiveSessionID() (string, bool)

	// Resolve expands an unambiguous id prefix to a full session id.
	Resolve(ctx context.Context, ref string) (string, error)

	// Get retrieves a session by id.
	Get(ctx context.Context, id string) (*hike.Session, error)

	// List returns sessions matching q, newest first.
	List(ctx context.Context, q store.Query) ([]*hike.Session, error)

	// Edit applies narrative edits. Status and timestamps are not editable.
	Edit(ctx context.Context, id string, edit hike.Edit) (*hike.Session, error)

	// Delete removes a session with its recordings and photos.
	// Clears the active id if it pointed at the session.
	Delete(ctx context.Context, id string) error

	// AddRecording persists captured audio as the session's last recording.
	AddRecording(ctx context.Context, sessionID, name string, audio []byte, duration float64) (*hike.Recording, error)

	// Recording retrieves recording metadata.
	Recording(ctx context.Context, id string) (*hike.Recording, error)

	// Recordings lists a session's recordings in sort order.
	Recordings(ctx context.Context, sessionID string) ([]*hike.Recording, error)

	// RecordingAudio returns a recording's stored audio.
	RecordingAudio(ctx context.Context, id string) ([]byte, error)

	// RenameRecording changes a recording's name.
	RenameRecording(ctx context.Context, id, name string) error

	// DeleteRecording removes a recording and renumbers the rest densely.
	DeleteRecording(ctx context.Context, id string) error

	// AddPhoto persists an image as the session's last photo.
	AddPhoto(ctx context.Context, sessionID, caption string, data []byte) (*hike.Photo, error)

	// Photos lists a session's photos in sort order.
	Photos(ctx context.Context, sessionID string) ([]*hike.Photo, error)

	// DeletePhoto removes a photo and renumbers the rest densely.
	DeletePhoto(ctx context.Context, id string) error
}
