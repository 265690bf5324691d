// Package display renders journal data for the terminal.
//
// It supports table, JSON and simple one-line-per-item output for session
// lists, a single session with its media, the status view and statistics.
package display

import (
	"io"
	"time"

	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/reminder"
	"github.com/0xmhha/hikelog/pkg/stats"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays data in aligned tables.
	FormatTable Format = "table"

	// FormatJSON displays data as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays one line per item.
	FormatSimple Format = "simple"
)

// SessionDetail is a session with its owned media.
type SessionDetail struct {
	Session    *hike.Session     `json:"session"`
	Active     bool              `json:"active"`
	Recordings []*hike.Recording `json:"recordings"`
	Photos     []*hike.Photo     `json:"photos"`
}

// Status is the "what is going on right now" view.
type Status struct {
	// Active is the in-progress hike, or nil.
	Active *hike.Session `json:"active,omitempty"`

	// Elapsed is the time since Active started.
	Elapsed time.Duration `json:"elapsed,omitempty"`

	// Reminders are the pending notifications, soonest first.
	Reminders []reminder.Notification `json:"reminders"`
}

// Formatter renders journal data.
type Formatter interface {
	// FormatSessions renders a session list. activeID marks the active hike.
	FormatSessions(w io.Writer, sessions []*hike.Session, activeID string) error

	// FormatSession renders one session with its recordings and photos.
	FormatSession(w io.Writer, d SessionDetail) error

	// FormatRecordings renders a session's recordings in sort order.
	FormatRecordings(w io.Writer, recs []*hike.Recording) error

	// FormatStatus renders the active hike and pending reminders.
	FormatStatus(w io.Writer, st Status) error

	// FormatStats renders a statistics report.
	FormatStats(w io.Writer, r stats.Report) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Location is used for displayed times. Default: time.Local.
	Location *time.Location

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
