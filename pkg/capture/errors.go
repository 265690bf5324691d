package capture

import "errors"

// Common errors returned by the capture engine.
var (
	// ErrDeviceUnavailable is returned when the device cannot be opened.
	// Callers surface it; the engine never retries.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrNotPlaying is returned by Seek outside the Playing state.
	ErrNotPlaying = errors.New("not playing")

	// ErrAlreadyRecording is returned by StartRecording while recording.
	ErrAlreadyRecording = errors.New("already recording")

	// ErrPendingCapture is returned by StartRecording while an interrupted
	// capture has not been collected with StopRecording or CancelRecording.
	ErrPendingCapture = errors.New("an interrupted capture is waiting to be saved")

	// ErrForeignPath is returned by SaveRecording for files outside TempDir.
	ErrForeignPath = errors.New("path is not an engine temp file")

	// ErrEmptySource is returned by Play without a source path.
	ErrEmptySource = errors.New("empty playback source")
)
