package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/0xmhha/hikelog/pkg/capture"
)

// defaultMeterWidth is used when the terminal size cannot be read.
const defaultMeterWidth = 80

// meter redraws a single status line for the capture engine. It stays
// silent when the output is not a terminal.
type meter struct {
	out     io.Writer
	enabled bool
	width   int
	drawn   bool
}

// newMeter creates a meter writing to out. enabled comes from the config.
func newMeter(out io.Writer, enabled bool) *meter {
	m := &meter{out: out, width: defaultMeterWidth}

	f, ok := out.(*os.File)
	if !enabled || !ok || !term.IsTerminal(int(f.Fd())) {
		return m
	}

	m.enabled = true
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		m.width = w
	}
	return m
}

// Render redraws the line for snap. total is the playback length.
func (m *meter) Render(snap capture.Snapshot, total time.Duration) {
	if !m.enabled {
		return
	}
	_, _ = fmt.Fprint(m.out, "\r"+meterLine(snap, total, m.width))
	m.drawn = true
}

// Finish moves past the meter line.
func (m *meter) Finish() {
	if m.drawn {
		_, _ = fmt.Fprintln(m.out)
		m.drawn = false
	}
}

// meterLine renders snap into exactly width columns.
func meterLine(snap capture.Snapshot, total time.Duration, width int) string {
	var prefix string
	var fill float64

	switch snap.State {
	case capture.StateRecording:
		prefix = "REC " + formatClock(snap.RecordingDuration) + " "
		fill = snap.Level
	case capture.StatePlaying:
		prefix = "PLAY " + formatClock(snap.Position)
		if total > 0 {
			prefix += " / " + formatClock(total)
		}
		prefix += " "
		fill = snap.Progress
	default:
		return padRight(snap.State.String(), width)
	}

	barWidth := width - len(prefix) - 3
	if barWidth < 1 {
		return padRight(prefix, width)
	}

	return padRight(prefix+"["+bar(fill, barWidth)+"]", width)
}

// bar draws a filled fraction of width cells.
func bar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	n := int(frac*float64(width) + 0.5)
	return strings.Repeat("#", n) + strings.Repeat(".", width-n)
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatClock formats d as m:ss.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
