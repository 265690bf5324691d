package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/stats"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatSessions implements Formatter.FormatSessions.
func (f *simpleFormatter) FormatSessions(w io.Writer, sessions []*hike.Session, activeID string) error {
	for _, s := range sessions {
		marker := ""
		if s.ID == activeID {
			marker = " *"
		}
		if _, err := fmt.Fprintf(w, "%s %s %s [%s]%s\n",
			shortID(s.ID),
			s.StartedAt.In(f.config.Location).Format(timeLayout),
			title(s),
			s.Status,
			marker); err != nil {
			return err
		}
	}
	return nil
}

// FormatSession implements Formatter.FormatSession.
func (f *simpleFormatter) FormatSession(w io.Writer, d SessionDetail) error {
	s := d.Session
	line := fmt.Sprintf("%s | %s | %s | mood %d",
		s.ID, title(s), s.Status, s.StartMood)
	if s.Status == hike.StatusCompleted {
		line += fmt.Sprintf("->%d | %s km | %s",
			s.EndMood, formatFloat(s.DistanceKm, 1), formatDuration(s.Duration()))
	}
	line += fmt.Sprintf(" | %d recordings | %d photos", len(d.Recordings), len(d.Photos))

	_, err := fmt.Fprintln(w, line)
	return err
}

// FormatRecordings implements Formatter.FormatRecordings.
func (f *simpleFormatter) FormatRecordings(w io.Writer, recs []*hike.Recording) error {
	for _, r := range recs {
		if _, err := fmt.Fprintf(w, "%d. %s (%s) %s\n",
			r.SortOrder+1, r.Name, formatSeconds(r.Duration), shortID(r.ID)); err != nil {
			return err
		}
	}
	return nil
}

// FormatStatus implements Formatter.FormatStatus.
func (f *simpleFormatter) FormatStatus(w io.Writer, st Status) error {
	if st.Active == nil {
		_, err := fmt.Fprintf(w, "No active hike | %d pending reminders\n", len(st.Reminders))
		return err
	}
	_, err := fmt.Fprintf(w, "Hiking: %s (%s) for %s | %d pending reminders\n",
		title(st.Active), shortID(st.Active.ID), formatDuration(st.Elapsed), len(st.Reminders))
	return err
}

// FormatStats implements Formatter.FormatStats.
func (f *simpleFormatter) FormatStats(w io.Writer, r stats.Report) error {
	sum := r.Summary
	_, err := fmt.Fprintf(w, "Hikes: %d | Completed: %d | Distance: %s km | Time: %s | Avg lift: %s\n",
		sum.Hikes,
		sum.Completed,
		formatFloat(sum.TotalDistanceKm, 1),
		formatDuration(sum.TotalDuration),
		formatFloat(sum.AvgMoodLift, 2))
	return err
}
