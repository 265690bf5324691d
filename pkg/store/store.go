// Package store provides persistence for hike sessions, recordings, photos
// and the process-wide active-session key.
//
// Each call is its own save point. Callers must not assume atomicity across
// calls: deleting a session does not delete its recordings, and inserting a
// session does not set the active key. The session manager sequences those.
//
// Example usage:
//
//	st, err := store.Open(store.Config{
//	    Driver: "bolt",
//	    DBPath: "~/.config/hikelog/journal.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
package store

import (
	"context"
	"sort"
	"time"

	"github.com/0xmhha/hikelog/pkg/hike"
)

// Store persists journal entities.
type Store interface {
	// InsertSession stores a new session. Fails if the id already exists.
	InsertSession(ctx context.Context, s *hike.Session) error

	// SaveSession replaces an existing session record in a single write.
	//
	// Returns hike.ErrSessionNotFound if the session does not exist.
	SaveSession(ctx context.Context, s *hike.Session) error

	// GetSession retrieves a session by id.
	//
	// Returns hike.ErrSessionNotFound if not found.
	GetSession(ctx context.Context, id string) (*hike.Session, error)

	// ListSessions returns sessions matching q, newest first.
	ListSessions(ctx context.Context, q Query) ([]*hike.Session, error)

	// DeleteSession removes the session record only.
	// Does not error if the session doesn't exist.
	DeleteSession(ctx context.Context, id string) error

	// InsertRecording stores recording metadata and its audio payload.
	InsertRecording(ctx context.Context, r *hike.Recording, audio []byte) error

	// SaveRecording replaces recording metadata.
	SaveRecording(ctx context.Context, r *hike.Recording) error

	// GetRecording retrieves recording metadata by id.
	GetRecording(ctx context.Context, id string) (*hike.Recording, error)

	// ListRecordings returns a session's recordings ordered by SortOrder.
	ListRecordings(ctx context.Context, sessionID string) ([]*hike.Recording, error)

	// RecordingAudio returns the stored audio payload.
	RecordingAudio(ctx context.Context, id string) ([]byte, error)

	// DeleteRecording removes recording metadata and audio.
	// Does not error if the recording doesn't exist.
	DeleteRecording(ctx context.Context, id string) error

	// InsertPhoto stores photo metadata and image bytes.
	InsertPhoto(ctx context.Context, p *hike.Photo, data []byte) error

	// SavePhoto replaces photo metadata.
	SavePhoto(ctx context.Context, p *hike.Photo) error

	// GetPhoto retrieves photo metadata by id.
	GetPhoto(ctx context.Context, id string) (*hike.Photo, error)

	// ListPhotos returns a session's photos ordered by SortOrder.
	ListPhotos(ctx context.Context, sessionID string) ([]*hike.Photo, error)

	// PhotoData returns the stored image bytes.
	PhotoData(ctx context.Context, id string) ([]byte, error)

	// DeletePhoto removes photo metadata and bytes.
	// Does not error if the photo doesn't exist.
	DeletePhoto(ctx context.Context, id string) error

	// ActiveSessionID returns the persisted active-session key, or "".
	ActiveSessionID(ctx context.Context) (string, error)

	// SetActiveSessionID persists the active-session key. "" clears it.
	SetActiveSessionID(ctx context.Context, id string) error

	// Close releases the underlying database.
	Close() error
}

// Query filters ListSessions.
type Query struct {
	// Status limits results to one status when non-empty.
	Status hike.Status

	// Since and Until bound StartedAt (inclusive) when non-zero.
	Since time.Time
	Until time.Time

	// Limit caps the result count when > 0.
	Limit int
}

// Match reports whether s satisfies the query filters (Limit excluded).
func (q Query) Match(s *hike.Session) bool {
	if q.Status != "" && s.Status != q.Status {
		return false
	}
	if !q.Since.IsZero() && s.StartedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && s.StartedAt.After(q.Until) {
		return false
	}
	return true
}

// apply sorts sessions newest first and applies the limit.
func (q Query) apply(sessions []*hike.Session) []*hike.Session {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	if q.Limit > 0 && len(sessions) > q.Limit {
		sessions = sessions[:q.Limit]
	}
	return sessions
}

// sortRecordings orders recordings by SortOrder, then creation time.
func sortRecordings(recs []*hike.Recording) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].SortOrder != recs[j].SortOrder {
			return recs[i].SortOrder < recs[j].SortOrder
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}

// sortPhotos orders photos by SortOrder, then creation time.
func sortPhotos(photos []*hike.Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		if photos[i].SortOrder != photos[j].SortOrder {
			return photos[i].SortOrder < photos[j].SortOrder
		}
		return photos[i].CreatedAt.Before(photos[j].CreatedAt)
	})
}

// Config contains store configuration.
type Config struct {
	// Driver selects the backend: bolt (default), sqlite or memory.
	Driver string

	// DBPath is the database file path for bolt and sqlite.
	DBPath string

	// Timeout is the bolt file lock timeout (default: 1 second).
	Timeout time.Duration
}
