package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/reminder"
	"github.com/0xmhha/hikelog/pkg/stats"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func sampleSessions() (*hike.Session, *hike.Session) {
	done := hike.NewSession(hike.StartFields{Title: "Ridge loop", StartMood: 4}, base)
	done.Complete(hike.ClosingFields{EndMood: 8, DistanceKm: 12.34, Steps: 16000, Rating: 4}, base.Add(150*time.Minute))

	active := hike.NewSession(hike.StartFields{StartMood: 6}, base.Add(48*time.Hour))
	return done, active
}

func sampleReport() stats.Report {
	done, active := sampleSessions()
	agg := stats.New(stats.Config{Location: time.UTC})
	agg.Add(done, []*hike.Recording{{Duration: 75}})
	agg.Add(active, nil)
	return agg.Report(5)
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"default format (table)", Config{}, "*display.tableFormatter"},
		{"table format", Config{Format: FormatTable}, "*display.tableFormatter"},
		{"json format", Config{Format: FormatJSON}, "*display.jsonFormatter"},
		{"simple format", Config{Format: FormatSimple}, "*display.simpleFormatter"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := fmt.Sprintf("%T", New(tt.config))
			if got != tt.want {
				t.Errorf("New() type = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"table", "JSON", " simple "} {
		if _, err := ParseFormat(in); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", in, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) error = nil, want error")
	}
}

func TestTableFormatter_FormatSessions(t *testing.T) {
	t.Parallel()

	done, active := sampleSessions()
	f := New(Config{Format: FormatTable, Location: time.UTC})

	var buf bytes.Buffer
	if err := f.FormatSessions(&buf, []*hike.Session{active, done}, active.ID); err != nil {
		t.Fatalf("FormatSessions() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Hikes",
		shortID(done.ID),
		"Ridge loop",
		"(untitled)",
		"in_progress *",
		"2h30m",
		"12.3",
		"4->8",
		"2026-03-02 08:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatter_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := New(Config{}).FormatSessions(&buf, nil, ""); err != nil {
		t.Fatalf("FormatSessions() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No data") {
		t.Errorf("output = %q, want No data", buf.String())
	}
}

func TestTableFormatter_FormatSession(t *testing.T) {
	t.Parallel()

	done, _ := sampleSessions()
	done.Tags = []string{"forest", "rain"}
	d := SessionDetail{
		Session: done,
		Recordings: []*hike.Recording{
			{ID: hike.NewID(), Name: "Creek", Duration: 65, SortOrder: 0, CreatedAt: base},
			{ID: hike.NewID(), Name: "Birds", Duration: 3.4, SortOrder: 1, CreatedAt: base},
		},
		Photos: []*hike.Photo{{ID: hike.NewID()}},
	}

	var buf bytes.Buffer
	if err := New(Config{Location: time.UTC}).FormatSession(&buf, d); err != nil {
		t.Fatalf("FormatSession() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{done.ID, "12.34 km", "16,000", "****", "forest, rain", "Recordings", "Creek", "1:05", "0:03", "Photos"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatter_FormatStatus(t *testing.T) {
	t.Parallel()

	_, active := sampleSessions()
	st := Status{
		Active:  active,
		Elapsed: 95 * time.Minute,
		Reminders: []reminder.Notification{
			{ID: "hike_reminder_1", FireAt: base, Body: "Drink some water"},
		},
	}

	var buf bytes.Buffer
	if err := New(Config{Location: time.UTC}).FormatStatus(&buf, st); err != nil {
		t.Fatalf("FormatStatus() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"1h35m", "hike_reminder_1", "Drink some water"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := New(Config{}).FormatStatus(&buf, Status{}); err != nil {
		t.Fatalf("FormatStatus() error = %v", err)
	}
	if !strings.Contains(buf.String(), "none") {
		t.Errorf("idle status missing 'none':\n%s", buf.String())
	}
}

func TestTableFormatter_FormatStats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := New(Config{Location: time.UTC}).FormatStats(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatStats() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Hiking Statistics", "12.3 km", "By Month", "2026-03", "Longest Hikes", "+4", "1 (1:15)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	t.Parallel()

	done, active := sampleSessions()
	f := New(Config{Format: FormatJSON, Compact: true})

	var buf bytes.Buffer
	if err := f.FormatSessions(&buf, []*hike.Session{done, active}, active.ID); err != nil {
		t.Fatalf("FormatSessions() error = %v", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["id"] != done.ID || rows[0]["active"] != false || rows[1]["active"] != true {
		t.Errorf("rows = %v", rows)
	}

	buf.Reset()
	if err := f.FormatSession(&buf, SessionDetail{Session: done}); err != nil {
		t.Fatalf("FormatSession() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"recordings":[]`) {
		t.Errorf("detail JSON missing empty recordings: %s", buf.String())
	}

	buf.Reset()
	if err := f.FormatStats(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatStats() error = %v", err)
	}
	var report stats.Report
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("invalid stats JSON: %v", err)
	}
	if report.Summary.Hikes != 2 {
		t.Errorf("Summary.Hikes = %d, want 2", report.Summary.Hikes)
	}
}

func TestSimpleFormatter(t *testing.T) {
	t.Parallel()

	done, active := sampleSessions()
	f := New(Config{Format: FormatSimple, Location: time.UTC})

	var buf bytes.Buffer
	if err := f.FormatSessions(&buf, []*hike.Session{active, done}, active.ID); err != nil {
		t.Fatalf("FormatSessions() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "*") {
		t.Errorf("lines = %q", lines)
	}

	buf.Reset()
	if err := f.FormatStatus(&buf, Status{}); err != nil {
		t.Fatalf("FormatStatus() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "No active hike") {
		t.Errorf("status = %q", buf.String())
	}

	buf.Reset()
	if err := f.FormatStats(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatStats() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Hikes: 2 | Completed: 1") {
		t.Errorf("stats = %q", buf.String())
	}
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	numbers := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -1500: "-1,500"}
	for in, want := range numbers {
		if got := formatNumber(in); got != want {
			t.Errorf("formatNumber(%d) = %s, want %s", in, got, want)
		}
	}

	durations := map[time.Duration]string{
		12 * time.Second:              "12s",
		42 * time.Minute:              "42m",
		time.Hour + 5*time.Minute:     "1h05m",
		26*time.Hour + 30*time.Minute: "26h30m",
	}
	for in, want := range durations {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%v) = %s, want %s", in, got, want)
		}
	}

	if got := formatSeconds(59.6); got != "1:00" {
		t.Errorf("formatSeconds(59.6) = %s, want 1:00", got)
	}
	if got := formatLift(3); got != "+3" {
		t.Errorf("formatLift(3) = %s, want +3", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(abc) = %s", got)
	}
}
