// Package capture drives the single audio device through its exclusive
// Idle, Recording and Playing modes and publishes live metering and
// playback progress without blocking callers.
//
// Example usage:
//
//	eng := capture.New(dev, capture.Config{TempDir: dir}, logger.Default())
//	if err := eng.StartRecording(); err != nil {
//	    return err // capture.ErrDeviceUnavailable is not retried
//	}
//	for snap := range eng.Updates() {
//	    fmt.Printf("%.1fs level=%.2f\n", snap.RecordingDuration.Seconds(), snap.Level)
//	}
package capture

import (
	"time"

	"github.com/0xmhha/hikelog/pkg/clock"
)

// State is the engine mode.
type State int

const (
	// StateIdle means the device is released.
	StateIdle State = iota

	// StateRecording means the device is capturing to a temp file.
	StateRecording

	// StatePlaying means the device is playing a source.
	StatePlaying
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Device is the audio hardware. Only the Engine addresses it.
//
// OpenCapture and OpenPlayback return a done channel with a buffer of one.
// The device closes it when the stream ends for any reason; before closing
// it sends one error if the stream failed. The engine ignores done for
// streams it closed itself. Readouts must not block.
type Device interface {
	// OpenCapture begins capturing into the file at sink.
	OpenCapture(sink string) (<-chan error, error)

	// CloseCapture stops capture and finalizes the sink.
	CloseCapture() error

	// CaptureElapsed returns device-measured capture time.
	CaptureElapsed() time.Duration

	// PeakLevel returns the latest peak level in dBFS (<= 0).
	PeakLevel() float64

	// OpenPlayback begins playing source from offset.
	OpenPlayback(source string, offset time.Duration) (<-chan error, error)

	// ClosePlayback stops playback.
	ClosePlayback() error

	// PlaybackPosition returns the current playback position.
	PlaybackPosition() time.Duration
}

// Capture is a finished capture whose temp file now belongs to the caller.
type Capture struct {
	// TempPath is the captured file.
	TempPath string

	// Elapsed is device-reported capture time.
	Elapsed time.Duration

	// Interrupted is true when the device stopped the capture on its own.
	Interrupted bool
}

// Seconds returns Elapsed in seconds, the unit recordings are stored in.
func (c *Capture) Seconds() float64 {
	return c.Elapsed.Seconds()
}

// Source is something to play.
type Source struct {
	// Path is the audio file.
	Path string

	// Duration is the stored recording duration used for progress.
	Duration time.Duration

	// Staged marks a temp file the engine removes when playback ends.
	Staged bool
}

// Snapshot is the latest observable engine state.
type Snapshot struct {
	State State

	// RecordingDuration is the elapsed capture time.
	RecordingDuration time.Duration

	// Level is the normalized input level in [0,1].
	Level float64

	// Position is the playback position.
	Position time.Duration

	// Progress is Position / Source.Duration clamped to [0,1].
	Progress float64

	// Interrupted is set when a capture stopped on its own and its file is
	// waiting to be collected by StopRecording.
	Interrupted bool
}

// Config contains engine configuration.
type Config struct {
	// TempDir holds in-flight capture and staged playback files.
	TempDir string

	// TickInterval is the metering and position refresh period (default: 100ms).
	TickInterval time.Duration

	// Clock supplies tickers and time (default: clock.Real).
	Clock clock.Clock
}
