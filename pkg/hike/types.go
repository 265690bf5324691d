// Package hike defines the journal's entities: hike sessions and the
// recordings and photos they own.
//
// A Session moves one way from StatusInProgress to StatusCompleted. Its
// narrative fields can be edited at any time; StartedAt never changes and
// EndedAt is set exactly once, at completion.
package hike

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a hike session.
type Status string

const (
	// StatusInProgress marks a hike that has started and not yet ended.
	StatusInProgress Status = "in_progress"

	// StatusCompleted marks a finished hike. Terminal.
	StatusCompleted Status = "completed"
)

// Mood bounds shared by start and end moods.
const (
	MinMood = 1
	MaxMood = 10
)

// Session represents one walk.
type Session struct {
	// ID is the session identifier (UUID v4).
	ID string `json:"id"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// StartedAt is set at creation and never changes.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is set once, when the hike completes.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// StartMood is the self-reported mood at the start (1-10).
	StartMood int `json:"start_mood"`

	// EndMood is the mood at completion (1-10); zero until then.
	EndMood int `json:"end_mood,omitempty"`

	Title      string   `json:"title,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Reflection string   `json:"reflection,omitempty"`
	DistanceKm float64  `json:"distance_km,omitempty"`
	Steps      int      `json:"steps,omitempty"`
	Rating     int      `json:"rating,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	// CreatedAt and UpdatedAt track record bookkeeping.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the session is in progress.
func (s *Session) IsActive() bool {
	return s != nil && s.Status == StatusInProgress
}

// Duration returns the elapsed hike time; zero for an unfinished hike.
func (s *Session) Duration() time.Duration {
	if s == nil || s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// MoodLift returns EndMood - StartMood for completed hikes.
func (s *Session) MoodLift() (int, bool) {
	if s == nil || s.Status != StatusCompleted || s.EndMood == 0 {
		return 0, false
	}
	return s.EndMood - s.StartMood, true
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndedAt != nil {
		ended := *s.EndedAt
		c.EndedAt = &ended
	}
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	return &c
}

// Recording is one captured audio clip owned by a session.
type Recording struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`

	// Duration is the capture elapsed time in seconds, not the decoded length.
	Duration float64 `json:"duration"`

	// SortOrder is dense and zero-based within the session.
	SortOrder int `json:"sort_order"`

	// Size is the stored audio payload size in bytes.
	Size int64 `json:"size"`
}

// DurationValue returns Duration as a time.Duration.
func (r *Recording) DurationValue() time.Duration {
	return time.Duration(r.Duration * float64(time.Second))
}

// Photo is one image owned by a session.
type Photo struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Caption   string    `json:"caption,omitempty"`
	SortOrder int       `json:"sort_order"`
	Size      int64     `json:"size"`
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.New().String()
}

// ValidID reports whether id is a well-formed UUID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
