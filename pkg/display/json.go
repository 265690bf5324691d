package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/stats"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

func (f *jsonFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// sessionRow is a list entry with the active marker.
type sessionRow struct {
	*hike.Session
	Active bool `json:"active"`
}

// FormatSessions implements Formatter.FormatSessions.
func (f *jsonFormatter) FormatSessions(w io.Writer, sessions []*hike.Session, activeID string) error {
	rows := make([]sessionRow, len(sessions))
	for i, s := range sessions {
		rows[i] = sessionRow{Session: s, Active: s.ID == activeID}
	}
	return f.encode(w, rows)
}

// FormatSession implements Formatter.FormatSession.
func (f *jsonFormatter) FormatSession(w io.Writer, d SessionDetail) error {
	if d.Recordings == nil {
		d.Recordings = []*hike.Recording{}
	}
	if d.Photos == nil {
		d.Photos = []*hike.Photo{}
	}
	return f.encode(w, d)
}

// FormatRecordings implements Formatter.FormatRecordings.
func (f *jsonFormatter) FormatRecordings(w io.Writer, recs []*hike.Recording) error {
	if recs == nil {
		recs = []*hike.Recording{}
	}
	return f.encode(w, recs)
}

// FormatStatus implements Formatter.FormatStatus.
func (f *jsonFormatter) FormatStatus(w io.Writer, st Status) error {
	return f.encode(w, st)
}

// FormatStats implements Formatter.FormatStats.
func (f *jsonFormatter) FormatStats(w io.Writer, r stats.Report) error {
	return f.encode(w, r)
}
