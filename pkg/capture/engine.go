package capture

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xmhha/hikelog/pkg/clock"
	"github.com/0xmhha/hikelog/pkg/logger"
)

// Temp file name patterns.
const (
	capturePattern  = "capture-*.wav"
	playbackPattern = "playback-*.wav"
)

var errStreamEnded = errors.New("capture stream ended")

// Engine owns the audio device and the transient capture or playback.
//
// Every transition runs under mu and bumps gen. Tick goroutines take mu and
// drop their work when gen has moved on, so no transition ever waits for a
// goroutine to exit.
type Engine struct {
	device Device
	clock  clock.Clock
	logger logger.Logger
	config Config

	mu       sync.Mutex
	state    State
	gen      uint64
	quit     chan struct{}
	ticker   clock.Ticker
	tempPath string
	pending  *Capture
	source   Source
	snap     Snapshot

	updates chan Snapshot
}

// New creates an engine for dev.
//
// Parameters:
//   - dev: Audio device
//   - cfg: Engine configuration
//   - log: Logger instance
//
// Returns a configured Engine in StateIdle.
func New(dev Device, cfg Config, log logger.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "hikelog-capture")
	}

	return &Engine{
		device:  dev,
		clock:   cfg.Clock,
		logger:  log.Component("capture"),
		config:  cfg,
		updates: make(chan Snapshot, 1),
	}
}

// State returns the current mode.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Updates delivers snapshots as they are published. The buffer holds one
// value and a slow reader only ever sees the newest.
func (e *Engine) Updates() <-chan Snapshot {
	return e.updates
}

// StartRecording stops any playback, opens a fresh temp file and starts
// capturing into it with periodic metering.
func (e *Engine) StartRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.state == StateRecording:
		return ErrAlreadyRecording
	case e.pending != nil:
		return ErrPendingCapture
	case e.state == StatePlaying:
		e.stopPlayingLocked()
	}

	if err := os.MkdirAll(e.config.TempDir, 0700); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	f, err := os.CreateTemp(e.config.TempDir, capturePattern)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	path := f.Name()
	if closeErr := f.Close(); closeErr != nil {
		e.logger.Warn("failed to close capture file", "path", path, "error", closeErr)
	}

	done, err := e.device.OpenCapture(path)
	if err != nil {
		e.removeFile(path)
		e.logger.Error("capture device open failed", "error", err)
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	e.state = StateRecording
	e.tempPath = path
	e.snap = Snapshot{State: StateRecording}
	e.publishLocked()

	gen, quit, ticker := e.beginLocked()
	go e.captureLoop(gen, quit, ticker, done)

	e.logger.Info("recording started", "path", path)
	return nil
}

// StopRecording stops capture and hands the temp file to the caller.
//
// If a capture was interrupted earlier, that capture is returned instead.
// Returns false when there is nothing to hand over.
func (e *Engine) StopRecording() (*Capture, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRecording {
		c := e.finishCaptureLocked(false)
		return c, true
	}

	if e.pending != nil {
		c := e.pending
		e.pending = nil
		e.snap.Interrupted = false
		e.publishLocked()
		return c, true
	}

	return nil, false
}

// CancelRecording stops capture and deletes the temp file. It also discards
// an uncollected interrupted capture. Safe to call in any state.
func (e *Engine) CancelRecording() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRecording {
		if err := e.device.CloseCapture(); err != nil {
			e.logger.Warn("capture close failed", "error", err)
		}
		e.endLocked()
		e.removeFile(e.tempPath)
		e.tempPath = ""
		e.state = StateIdle
		e.snap = Snapshot{State: StateIdle}
		e.publishLocked()
		e.logger.Info("recording cancelled")
	}

	if e.pending != nil {
		e.removeFile(e.pending.TempPath)
		e.pending = nil
		e.snap.Interrupted = false
		e.publishLocked()
	}
}

// SaveRecording reads a capture temp file into memory and removes it.
// The caller persists the bytes as a recording.
func (e *Engine) SaveRecording(tempPath string) ([]byte, error) {
	if !e.ownsPath(tempPath) {
		return nil, fmt.Errorf("%w: %s", ErrForeignPath, tempPath)
	}

	data, err := os.ReadFile(tempPath) // #nosec G304 -- path is inside TempDir
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}

	e.removeFile(tempPath)
	return data, nil
}

// StagePlayback writes stored audio to a temp file so the device can play it.
// Play removes the file when playback ends.
func (e *Engine) StagePlayback(data []byte, duration time.Duration) (Source, error) {
	if err := os.MkdirAll(e.config.TempDir, 0700); err != nil {
		return Source{}, fmt.Errorf("failed to create temp directory: %w", err)
	}

	f, err := os.CreateTemp(e.config.TempDir, playbackPattern)
	if err != nil {
		return Source{}, fmt.Errorf("failed to create playback file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		e.removeFile(f.Name())
		return Source{}, fmt.Errorf("failed to write playback file: %w", err)
	}
	if err := f.Close(); err != nil {
		e.removeFile(f.Name())
		return Source{}, fmt.Errorf("failed to close playback file: %w", err)
	}

	return Source{Path: f.Name(), Duration: duration, Staged: true}, nil
}

// Play stops whatever the device is doing and plays src. When the device
// reports end of stream the engine returns to Idle on its own.
func (e *Engine) Play(src Source) error {
	if src.Path == "" {
		return ErrEmptySource
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRecording:
		// Keep the audio: the capture waits for StopRecording.
		e.pending = e.finishCaptureLocked(false)
	case StatePlaying:
		if e.source.Path == src.Path {
			// Restarting the same source keeps its staged file.
			e.source.Staged = false
		}
		e.stopPlayingLocked()
	}

	if err := e.openPlaybackLocked(src, 0); err != nil {
		if src.Staged {
			e.removeFile(src.Path)
		}
		return err
	}

	e.logger.Info("playback started", "path", src.Path, "duration", src.Duration)
	return nil
}

// StopPlaying stops playback and resets the position. Safe in any state.
func (e *Engine) StopPlaying() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePlaying {
		e.stopPlayingLocked()
	}
}

// Seek moves playback to pos.
func (e *Engine) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return ErrNotPlaying
	}

	if pos < 0 {
		pos = 0
	}
	if d := e.source.Duration; d > 0 && pos > d {
		pos = d
	}

	if err := e.device.ClosePlayback(); err != nil {
		e.logger.Warn("playback close failed", "error", err)
	}
	e.endLocked()

	if err := e.openPlaybackLocked(e.source, pos); err != nil {
		e.resetPlaybackLocked()
		return err
	}
	return nil
}

// Close releases the device. A capture in progress is stopped and kept on
// disk; stale temp files are removed by CleanupStale on a later start.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRecording:
		c := e.finishCaptureLocked(false)
		e.logger.Warn("recording left unsaved", "path", c.TempPath)
	case StatePlaying:
		e.stopPlayingLocked()
	}
}

// NormalizeLevel converts a dBFS peak reading to [0,1].
func NormalizeLevel(db float64) float64 {
	if math.IsNaN(db) || math.IsInf(db, -1) {
		return 0
	}
	return clamp01(math.Pow(10, db/20))
}

func (e *Engine) captureLoop(gen uint64, quit <-chan struct{}, ticker clock.Ticker, done <-chan error) {
	for {
		select {
		case <-quit:
			return

		case <-ticker.C():
			e.mu.Lock()
			if e.gen != gen {
				e.mu.Unlock()
				return
			}
			e.snap.RecordingDuration = e.device.CaptureElapsed()
			e.snap.Level = NormalizeLevel(e.device.PeakLevel())
			e.publishLocked()
			e.mu.Unlock()

		case err, ok := <-done:
			e.mu.Lock()
			if e.gen != gen {
				e.mu.Unlock()
				return
			}
			if !ok {
				err = errStreamEnded
			}
			e.logger.Warn("recording interrupted", "error", err)
			e.pending = e.finishCaptureLocked(true)
			e.mu.Unlock()
			return
		}
	}
}

func (e *Engine) playbackLoop(gen uint64, quit <-chan struct{}, ticker clock.Ticker, done <-chan error) {
	for {
		select {
		case <-quit:
			return

		case <-ticker.C():
			e.mu.Lock()
			if e.gen != gen {
				e.mu.Unlock()
				return
			}
			pos := e.device.PlaybackPosition()
			e.snap.Position = pos
			e.snap.Progress = progress(pos, e.source.Duration)
			e.publishLocked()
			e.mu.Unlock()

		case err := <-done:
			e.mu.Lock()
			if e.gen != gen {
				e.mu.Unlock()
				return
			}
			if err != nil {
				e.logger.Warn("playback failed", "error", err)
			} else {
				e.logger.Debug("playback finished", "path", e.source.Path)
			}
			e.stopPlayingLocked()
			e.mu.Unlock()
			return
		}
	}
}

// beginLocked starts a new generation with its own ticker and quit channel.
func (e *Engine) beginLocked() (uint64, chan struct{}, clock.Ticker) {
	e.gen++
	e.quit = make(chan struct{})
	e.ticker = e.clock.NewTicker(e.config.TickInterval)
	return e.gen, e.quit, e.ticker
}

// endLocked retires the current generation's goroutine.
func (e *Engine) endLocked() {
	e.gen++
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	if e.quit != nil {
		close(e.quit)
		e.quit = nil
	}
}

// finishCaptureLocked closes the device and returns the capture.
func (e *Engine) finishCaptureLocked(interrupted bool) *Capture {
	if err := e.device.CloseCapture(); err != nil && !interrupted {
		e.logger.Warn("capture close failed", "error", err)
	}
	elapsed := e.device.CaptureElapsed()
	e.endLocked()

	c := &Capture{
		TempPath:    e.tempPath,
		Elapsed:     elapsed,
		Interrupted: interrupted,
	}

	e.tempPath = ""
	e.state = StateIdle
	e.snap = Snapshot{
		State:             StateIdle,
		RecordingDuration: elapsed,
		Interrupted:       interrupted,
	}
	e.publishLocked()

	e.logger.Info("recording stopped",
		"path", c.TempPath,
		"elapsed", elapsed,
		"interrupted", interrupted)

	return c
}

func (e *Engine) openPlaybackLocked(src Source, offset time.Duration) error {
	done, err := e.device.OpenPlayback(src.Path, offset)
	if err != nil {
		e.logger.Error("playback device open failed", "error", err)
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	e.state = StatePlaying
	e.source = src
	e.snap = Snapshot{
		State:       StatePlaying,
		Position:    offset,
		Progress:    progress(offset, src.Duration),
		Interrupted: e.pending != nil,
	}
	e.publishLocked()

	gen, quit, ticker := e.beginLocked()
	go e.playbackLoop(gen, quit, ticker, done)
	return nil
}

func (e *Engine) stopPlayingLocked() {
	if err := e.device.ClosePlayback(); err != nil {
		e.logger.Warn("playback close failed", "error", err)
	}
	e.endLocked()
	e.resetPlaybackLocked()
}

// resetPlaybackLocked returns to Idle with position 0.
func (e *Engine) resetPlaybackLocked() {
	if e.source.Staged {
		e.removeFile(e.source.Path)
	}
	e.source = Source{}
	e.state = StateIdle
	e.snap = Snapshot{State: StateIdle, Interrupted: e.pending != nil}
	e.publishLocked()
}

// publishLocked offers the snapshot to Updates, replacing an unread one.
func (e *Engine) publishLocked() {
	s := e.snap
	select {
	case e.updates <- s:
		return
	default:
	}
	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- s:
	default:
	}
}

func (e *Engine) ownsPath(path string) bool {
	dir, err := filepath.Abs(e.config.TempDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == dir
}

func (e *Engine) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("failed to remove temp file", "path", path, "error", err)
	}
}

func progress(pos, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return clamp01(float64(pos) / float64(total))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
