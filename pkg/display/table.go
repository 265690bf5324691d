package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/stats"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

func title(s *hike.Session) string {
	if s.Title == "" {
		return "(untitled)"
	}
	return s.Title
}

// FormatSessions implements Formatter.FormatSessions.
func (f *tableFormatter) FormatSessions(w io.Writer, sessions []*hike.Session, activeID string) error {
	if err := writeHeader(w, "Hikes", f.config.Compact); err != nil {
		return err
	}

	header := []string{"ID", "Started", "Title", "Status", "Duration", "Km", "Mood"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		status := string(s.Status)
		if s.ID == activeID {
			status += " *"
		}

		duration, km, mood := "-", "-", fmt.Sprintf("%d", s.StartMood)
		if s.Status == hike.StatusCompleted {
			duration = formatDuration(s.Duration())
			km = formatFloat(s.DistanceKm, 1)
			mood = fmt.Sprintf("%d->%d", s.StartMood, s.EndMood)
		}

		rows = append(rows, []string{
			shortID(s.ID),
			s.StartedAt.In(f.config.Location).Format(timeLayout),
			title(s),
			status,
			duration,
			km,
			mood,
		})
	}

	return f.writeTable(w, header, rows)
}

// FormatSession implements Formatter.FormatSession.
func (f *tableFormatter) FormatSession(w io.Writer, d SessionDetail) error {
	s := d.Session
	if err := writeHeader(w, title(s), f.config.Compact); err != nil {
		return err
	}

	status := string(s.Status)
	if d.Active {
		status += " (active)"
	}

	rows := [][]string{
		{"ID", s.ID},
		{"Status", status},
		{"Started", s.StartedAt.In(f.config.Location).Format(timeLayout)},
		{"Start Mood", fmt.Sprintf("%d", s.StartMood)},
	}
	if s.EndedAt != nil {
		rows = append(rows,
			[]string{"Ended", s.EndedAt.In(f.config.Location).Format(timeLayout)},
			[]string{"Duration", formatDuration(s.Duration())},
			[]string{"End Mood", fmt.Sprintf("%d", s.EndMood)},
			[]string{"Distance", formatFloat(s.DistanceKm, 2) + " km"},
			[]string{"Steps", formatNumber(s.Steps)},
		)
		if s.Rating > 0 {
			rows = append(rows, []string{"Rating", strings.Repeat("*", s.Rating)})
		}
	}
	if len(s.Tags) > 0 {
		rows = append(rows, []string{"Tags", strings.Join(s.Tags, ", ")})
	}
	if s.Notes != "" {
		rows = append(rows, []string{"Notes", s.Notes})
	}
	if s.Reflection != "" {
		rows = append(rows, []string{"Reflection", s.Reflection})
	}
	if len(d.Photos) > 0 {
		rows = append(rows, []string{"Photos", fmt.Sprintf("%d", len(d.Photos))})
	}

	if err := f.writeTable(w, []string{"Field", "Value"}, rows); err != nil {
		return err
	}

	if len(d.Recordings) == 0 {
		return nil
	}
	return f.FormatRecordings(w, d.Recordings)
}

// FormatRecordings implements Formatter.FormatRecordings.
func (f *tableFormatter) FormatRecordings(w io.Writer, recs []*hike.Recording) error {
	if err := writeHeader(w, "Recordings", f.config.Compact); err != nil {
		return err
	}

	header := []string{"#", "ID", "Name", "Length", "Recorded"}
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			fmt.Sprintf("%d", r.SortOrder+1),
			shortID(r.ID),
			r.Name,
			formatSeconds(r.Duration),
			r.CreatedAt.In(f.config.Location).Format(timeLayout),
		}
	}

	return f.writeTable(w, header, rows)
}

// FormatStatus implements Formatter.FormatStatus.
func (f *tableFormatter) FormatStatus(w io.Writer, st Status) error {
	if err := writeHeader(w, "Status", f.config.Compact); err != nil {
		return err
	}

	var rows [][]string
	if st.Active != nil {
		rows = append(rows,
			[]string{"Active Hike", title(st.Active) + " (" + shortID(st.Active.ID) + ")"},
			[]string{"Started", st.Active.StartedAt.In(f.config.Location).Format(timeLayout)},
			[]string{"Elapsed", formatDuration(st.Elapsed)},
		)
	} else {
		rows = append(rows, []string{"Active Hike", "none"})
	}
	rows = append(rows, []string{"Pending Reminders", fmt.Sprintf("%d", len(st.Reminders))})

	if err := f.writeTable(w, []string{"Item", "Value"}, rows); err != nil {
		return err
	}

	if len(st.Reminders) == 0 {
		return nil
	}

	reminders := make([][]string, len(st.Reminders))
	for i, n := range st.Reminders {
		reminders[i] = []string{n.ID, n.FireAt.In(f.config.Location).Format(timeLayout), n.Body}
	}
	return f.writeTable(w, []string{"Reminder", "Fires", "Message"}, reminders)
}

// FormatStats implements Formatter.FormatStats.
func (f *tableFormatter) FormatStats(w io.Writer, r stats.Report) error {
	if err := writeHeader(w, "Hiking Statistics", f.config.Compact); err != nil {
		return err
	}

	sum := r.Summary
	rows := [][]string{
		{"Hikes", formatNumber(sum.Hikes)},
		{"Completed", formatNumber(sum.Completed)},
		{"In Progress", formatNumber(sum.InProgress)},
		{"Total Distance", formatFloat(sum.TotalDistanceKm, 1) + " km"},
		{"Median Distance", formatFloat(sum.MedianDistanceKm, 1) + " km"},
		{"Longest Hike", formatFloat(sum.LongestDistanceKm, 1) + " km"},
		{"Total Steps", formatNumber(sum.TotalSteps)},
		{"Total Time", formatDuration(sum.TotalDuration)},
		{"Average Time", formatDuration(sum.AvgDuration)},
		{"Avg Mood Lift", formatFloat(sum.AvgMoodLift, 2)},
		{"Recordings", fmt.Sprintf("%d (%s)", sum.Recordings, formatSeconds(sum.RecordingSeconds))},
	}
	if !sum.FirstHike.IsZero() {
		rows = append(rows,
			[]string{"First Hike", sum.FirstHike.In(f.config.Location).Format(timeLayout)},
			[]string{"Last Hike", sum.LastHike.In(f.config.Location).Format(timeLayout)},
		)
	}

	if err := f.writeTable(w, []string{"Metric", "Value"}, rows); err != nil {
		return err
	}

	if len(r.Months) > 0 {
		if err := writeHeader(w, "By Month", f.config.Compact); err != nil {
			return err
		}
		months := make([][]string, len(r.Months))
		for i, m := range r.Months {
			months[i] = []string{
				m.Month,
				formatNumber(m.Hikes),
				formatFloat(m.DistanceKm, 1),
				formatDuration(m.Duration),
				formatFloat(m.AvgMoodLift, 2),
			}
		}
		if err := f.writeTable(w, []string{"Month", "Hikes", "Km", "Time", "Mood Lift"}, months); err != nil {
			return err
		}
	}

	if len(r.Top) > 0 {
		if err := writeHeader(w, "Longest Hikes", f.config.Compact); err != nil {
			return err
		}
		top := make([][]string, len(r.Top))
		for i, h := range r.Top {
			lift := "-"
			if h.MoodLift != nil {
				lift = formatLift(*h.MoodLift)
			}
			name := h.Title
			if name == "" {
				name = "(untitled)"
			}
			top[i] = []string{
				fmt.Sprintf("#%d", i+1),
				shortID(h.ID),
				name,
				formatFloat(h.DistanceKm, 1),
				formatDuration(h.Duration),
				lift,
			}
		}
		if err := f.writeTable(w, []string{"Rank", "ID", "Title", "Km", "Time", "Lift"}, top); err != nil {
			return err
		}
	}

	return nil
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}
	return nil
}

// writeRow writes a single table row. The last cell is not padded.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		if i == len(cells)-1 {
			b.WriteString(cell)
			continue
		}
		fmt.Fprintf(&b, "%-*s", widths[i], cell)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
