// Package device implements the capture engine's audio device with ffmpeg
// for capture and ffplay for playback.
//
// Capture runs ffmpeg with raw S16LE mono PCM on stdout. The device wraps
// the stream in a WAV file, tracks the peak level per chunk and measures
// elapsed time from the number of samples received, so the reported time
// follows the hardware clock rather than wall time.
package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/0xmhha/hikelog/pkg/capture"
	"github.com/0xmhha/hikelog/pkg/logger"
)

var _ capture.Device = (*FFmpeg)(nil)

const (
	readChunkSize = 4096
	stopTimeout   = 2 * time.Second

	defaultStartupTimeout = 2 * time.Second
)

// Common errors returned by the device.
var (
	// ErrBusy is returned when opening a stream while one is open.
	ErrBusy = errors.New("audio device busy")

	// ErrProcessExited is sent on done when a process ends on its own
	// without an error status.
	ErrProcessExited = errors.New("audio process exited")

	// ErrNoInput is returned by OpenCapture when ffmpeg exits before
	// delivering any audio, e.g. when the input cannot be opened.
	ErrNoInput = errors.New("capture input could not be opened")
)

// Config contains device configuration.
type Config struct {
	// FFmpegPath is the capture binary (default: ffmpeg).
	FFmpegPath string

	// FFplayPath is the playback binary (default: ffplay).
	FFplayPath string

	// InputFormat is the ffmpeg input format; empty picks the platform default.
	InputFormat string

	// InputDevice is the ffmpeg input device; empty picks the platform default.
	InputDevice string

	// SampleRate is the capture rate in Hz (default: 44100).
	SampleRate int

	// StartupTimeout bounds how long OpenCapture waits for the first audio
	// (default: 2s). A process still running without output after this is
	// treated as started.
	StartupTimeout time.Duration
}

// FFmpeg is an audio device backed by ffmpeg and ffplay processes.
type FFmpeg struct {
	config Config
	logger logger.Logger

	mu       sync.Mutex
	capture  *captureRun
	playback *playbackRun

	// lastSamples keeps the sample count of the last closed capture.
	lastSamples int64
}

type captureRun struct {
	cmd      *exec.Cmd
	file     *os.File
	wav      *WAVWriter
	stderr   *bytes.Buffer
	done     chan error
	started  chan struct{}
	finished chan struct{}
	samples  int64
	peakDB   float64
	stopping bool
	closeErr error
}

type playbackRun struct {
	cmd       *exec.Cmd
	done      chan error
	finished  chan struct{}
	offset    time.Duration
	startedAt time.Time
	stopping  bool
}

// New creates an ffmpeg-backed device.
//
// Parameters:
//   - cfg: Device configuration
//   - log: Logger instance
//
// Returns a device ready to open streams.
func New(cfg Config, log logger.Logger) *FFmpeg {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFplayPath == "" {
		cfg.FFplayPath = "ffplay"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}

	return &FFmpeg{
		config: cfg,
		logger: log.Component("device"),
	}
}

// captureArgs builds the ffmpeg arguments for mono S16LE on stdout.
func (d *FFmpeg) captureArgs() []string {
	format, input := defaultInput()
	if d.config.InputFormat != "" {
		format = d.config.InputFormat
	}
	if d.config.InputDevice != "" {
		input = d.config.InputDevice
	}

	return []string{
		"-f", format,
		"-i", input,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-vn",
		"-f", "s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.SampleRate),
		"pipe:1",
	}
}

// OpenCapture implements capture.Device.OpenCapture.
//
// It returns once the first audio arrives. If ffmpeg exits before that,
// the input could not be opened and OpenCapture fails with ErrNoInput.
func (d *FFmpeg) OpenCapture(sink string) (<-chan error, error) {
	run, err := d.startCapture(sink)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(d.config.StartupTimeout)
	defer timer.Stop()

	select {
	case <-run.started:
	case <-run.finished:
	case <-timer.C:
		d.logger.Warn("no audio from capture process yet", "timeout", d.config.StartupTimeout)
	}

	select {
	case <-run.started:
		return run.done, nil
	default:
	}

	select {
	case <-run.finished:
	default:
		return run.done, nil
	}

	d.mu.Lock()
	if d.capture == run {
		d.capture = nil
	}
	d.lastSamples = 0
	d.mu.Unlock()

	msg := strings.TrimSpace(run.stderr.String())
	if msg == "" {
		msg = "no output"
	}
	d.logger.Error("capture process exited during startup", "error", msg)
	return nil, fmt.Errorf("%w: %s", ErrNoInput, msg)
}

// startCapture starts ffmpeg writing into sink and registers the run.
func (d *FFmpeg) startCapture(sink string) (*captureRun, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil || d.playback != nil {
		return nil, ErrBusy
	}

	f, err := os.Create(sink) // #nosec G304 -- sink is an engine temp file
	if err != nil {
		return nil, fmt.Errorf("failed to create sink: %w", err)
	}

	wav, err := NewWAVWriter(f, d.config.SampleRate, 1)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	cmd := exec.Command(d.config.FFmpegPath, d.captureArgs()...) // #nosec G204 -- binary from config
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to open capture pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start %s: %w", d.config.FFmpegPath, err)
	}

	run := &captureRun{
		cmd:      cmd,
		file:     f,
		wav:      wav,
		stderr:   stderr,
		done:     make(chan error, 1),
		started:  make(chan struct{}),
		finished: make(chan struct{}),
		peakDB:   MinDB,
	}
	d.capture = run
	d.lastSamples = 0

	go d.readCapture(run, stdout)

	d.logger.Debug("capture process started", "pid", cmd.Process.Pid, "sink", sink)
	return run, nil
}

// readCapture copies PCM into the WAV file until the process ends.
func (d *FFmpeg) readCapture(run *captureRun, stdout io.Reader) {
	defer close(run.finished)

	buf := make([]byte, readChunkSize)
	started := false
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if !started {
				close(run.started)
				started = true
			}
			// Keep whole samples only.
			n -= n % 2
			if _, werr := run.wav.Write(buf[:n]); werr != nil {
				d.logger.Error("failed to write capture data", "error", werr)
			}
			peak := PeakDB(buf[:n])

			d.mu.Lock()
			run.samples += int64(n / 2)
			run.peakDB = peak
			d.mu.Unlock()
		}
		if err != nil {
			break
		}
	}

	waitErr := run.cmd.Wait()

	closeErr := run.wav.Close()
	if err := run.file.Close(); err != nil && closeErr == nil {
		closeErr = err
	}

	d.mu.Lock()
	run.closeErr = closeErr
	stopping := run.stopping
	d.mu.Unlock()

	if !stopping {
		if waitErr == nil {
			waitErr = ErrProcessExited
		}
		run.done <- waitErr
	}
	close(run.done)
}

// CloseCapture implements capture.Device.CloseCapture.
//
// It waits for the WAV file to be finalized before returning.
func (d *FFmpeg) CloseCapture() error {
	d.mu.Lock()
	run := d.capture
	if run == nil {
		d.mu.Unlock()
		return nil
	}
	run.stopping = true
	d.mu.Unlock()

	stopProcess(run.cmd, run.finished)

	// CaptureElapsed keeps reporting the final value after close.
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capture = nil
	d.lastSamples = run.samples
	return run.closeErr
}

// CaptureElapsed implements capture.Device.CaptureElapsed.
func (d *FFmpeg) CaptureElapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	samples := d.lastSamples
	if d.capture != nil {
		samples = d.capture.samples
	}
	return time.Duration(samples) * time.Second / time.Duration(d.config.SampleRate)
}

// PeakLevel implements capture.Device.PeakLevel.
func (d *FFmpeg) PeakLevel() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return MinDB
	}
	return d.capture.peakDB
}

// OpenPlayback implements capture.Device.OpenPlayback.
func (d *FFmpeg) OpenPlayback(source string, offset time.Duration) (<-chan error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil || d.playback != nil {
		return nil, ErrBusy
	}

	args := []string{
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		source,
	}

	cmd := exec.Command(d.config.FFplayPath, args...) // #nosec G204 -- binary from config
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", d.config.FFplayPath, err)
	}

	run := &playbackRun{
		cmd:       cmd,
		done:      make(chan error, 1),
		finished:  make(chan struct{}),
		offset:    offset,
		startedAt: time.Now(),
	}
	d.playback = run

	go d.waitPlayback(run)

	d.logger.Debug("playback process started", "pid", cmd.Process.Pid, "source", source)
	return run.done, nil
}

func (d *FFmpeg) waitPlayback(run *playbackRun) {
	err := run.cmd.Wait()
	close(run.finished)

	d.mu.Lock()
	stopping := run.stopping
	if d.playback == run {
		d.playback = nil
	}
	d.mu.Unlock()

	// A clean exit without a stop request is the natural end of stream.
	if !stopping && err != nil {
		run.done <- err
	}
	close(run.done)
}

// ClosePlayback implements capture.Device.ClosePlayback.
func (d *FFmpeg) ClosePlayback() error {
	d.mu.Lock()
	run := d.playback
	if run == nil {
		d.mu.Unlock()
		return nil
	}
	run.stopping = true
	d.playback = nil
	d.mu.Unlock()

	stopProcess(run.cmd, run.finished)
	return nil
}

// PlaybackPosition implements capture.Device.PlaybackPosition.
func (d *FFmpeg) PlaybackPosition() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.playback == nil {
		return 0
	}
	return d.playback.offset + time.Since(d.playback.startedAt)
}

// stopProcess interrupts cmd and waits for finished, killing it if it
// does not exit within stopTimeout.
func stopProcess(cmd *exec.Cmd, finished <-chan struct{}) {
	select {
	case <-finished:
		return
	default:
	}

	if cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-finished:
	case <-time.After(stopTimeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-finished
	}
}
