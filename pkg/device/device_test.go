package device

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/0xmhha/hikelog/pkg/capture"
	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm(samples ...int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

func TestPeakDB(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want float64
	}{
		{"silence", pcm(0, 0, 0), MinDB},
		{"empty", nil, MinDB},
		{"full scale negative", pcm(100, -32768), 0},
		{"half scale", pcm(16384, -200), -6.0206},
		{"below floor", pcm(1), MinDB},
		{"odd trailing byte ignored", append(pcm(16384), 0xFF), -6.0206},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PeakDB(tt.buf), 1e-3)
		})
	}
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	w, err := NewWAVWriter(f, 8000, 1)
	require.NoError(t, err)

	// 1.5 seconds of mono 16-bit audio, written in uneven chunks.
	data := make([]byte, 8000*2*3/2)
	for off := 0; off < len(data); off += 1000 {
		end := min(off+1000, len(data))
		_, err := w.Write(data[off:end])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, raw, wavHeaderSize+len(data))
	assert.Equal(t, "RIFF", string(raw[0:4]))
	assert.Equal(t, uint32(36+len(data)), binary.LittleEndian.Uint32(raw[4:]))

	d, err := WAVDuration(raw)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestWAVDurationUnpatchedHeader(t *testing.T) {
	var buf bytes.Buffer
	ww := &WAVWriter{sampleRate: 1000, channels: 1}
	buf.Write(ww.header()) // sizes still zero, as after a crash
	buf.Write(make([]byte, 1000))

	d, err := WAVDuration(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)
}

func TestWAVDurationInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", []byte("OggS0000WAVEfmt ")},
		{"no data chunk", append([]byte("RIFF\x00\x00\x00\x00WAVE"), []byte("LIST\x00\x00\x00\x00")...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WAVDuration(tt.data)
			assert.ErrorIs(t, err, ErrInvalidWAV)
		})
	}
}

func TestCaptureArgs(t *testing.T) {
	d := New(Config{InputFormat: "alsa", InputDevice: "hw:1", SampleRate: 48000}, logger.Noop())
	args := d.captureArgs()

	assert.Equal(t, []string{"-f", "alsa", "-i", "hw:1"}, args[:4])
	assert.Contains(t, args, "48000")
	assert.Equal(t, "pipe:1", args[len(args)-1])

	defaults := New(Config{}, logger.Noop())
	assert.Equal(t, "ffmpeg", defaults.config.FFmpegPath)
	assert.Equal(t, "ffplay", defaults.config.FFplayPath)
	assert.Equal(t, 44100, defaults.config.SampleRate)
}

// script writes an executable shell script standing in for ffmpeg/ffplay.
func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not available")
	}

	path := filepath.Join(t.TempDir(), "fake.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0700))
	return path
}

func TestFFmpegCaptureRoundTrip(t *testing.T) {
	// One second of silence at 8 kHz, then wait to be stopped.
	bin := script(t, "head -c 16000 /dev/zero\nexec sleep 5")
	d := New(Config{FFmpegPath: bin, SampleRate: 8000}, logger.Noop())

	sink := filepath.Join(t.TempDir(), "capture-test.wav")
	done, err := d.OpenCapture(sink)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.CaptureElapsed() == time.Second
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, MinDB, d.PeakLevel())

	_, err = d.OpenPlayback(sink, 0)
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, d.CloseCapture())

	streamErr, ok := <-done
	assert.False(t, ok, "a requested stop sends no error")
	assert.NoError(t, streamErr)

	elapsed := d.CaptureElapsed()
	assert.Equal(t, time.Second, elapsed)

	data, err := os.ReadFile(sink)
	require.NoError(t, err)
	decoded, err := WAVDuration(data)
	require.NoError(t, err)
	assert.InDelta(t, elapsed.Seconds(), decoded.Seconds(), 0.05)

	assert.NoError(t, d.CloseCapture(), "second close is a no-op")
}

func TestFFmpegCaptureProcessExit(t *testing.T) {
	bin := script(t, "head -c 8000 /dev/zero")
	d := New(Config{FFmpegPath: bin, SampleRate: 8000}, logger.Noop())

	sink := filepath.Join(t.TempDir(), "capture-exit.wav")
	done, err := d.OpenCapture(sink)
	require.NoError(t, err)

	select {
	case streamErr := <-done:
		assert.True(t, errors.Is(streamErr, ErrProcessExited))
	case <-time.After(3 * time.Second):
		t.Fatal("capture exit not reported")
	}

	require.NoError(t, d.CloseCapture())
	assert.Equal(t, 500*time.Millisecond, d.CaptureElapsed())
}

func TestFFmpegCaptureStartFailure(t *testing.T) {
	d := New(Config{FFmpegPath: filepath.Join(t.TempDir(), "missing-ffmpeg")}, logger.Noop())

	_, err := d.OpenCapture(filepath.Join(t.TempDir(), "capture-x.wav"))
	assert.Error(t, err)

	// The device is free again.
	assert.Zero(t, d.CaptureElapsed())
	assert.Equal(t, MinDB, d.PeakLevel())
}

func TestFFmpegCaptureInputOpenFailure(t *testing.T) {
	bin := script(t, "echo 'hw:9: Permission denied' >&2\nexit 1")
	d := New(Config{FFmpegPath: bin, SampleRate: 8000}, logger.Noop())

	_, err := d.OpenCapture(filepath.Join(t.TempDir(), "capture-denied.wav"))
	require.ErrorIs(t, err, ErrNoInput)
	assert.Contains(t, err.Error(), "Permission denied")

	d.mu.Lock()
	assert.Nil(t, d.capture, "the device is free again")
	d.mu.Unlock()
	assert.Zero(t, d.CaptureElapsed())
}

func TestEngineRejectsCaptureWithoutInput(t *testing.T) {
	bin := script(t, "exit 1")
	d := New(Config{FFmpegPath: bin, SampleRate: 8000}, logger.Noop())

	dir := t.TempDir()
	eng := capture.New(d, capture.Config{TempDir: dir}, logger.Noop())
	defer eng.Close()

	err := eng.StartRecording()
	require.ErrorIs(t, err, capture.ErrDeviceUnavailable)
	assert.Equal(t, capture.StateIdle, eng.State())

	_, ok := eng.StopRecording()
	assert.False(t, ok, "nothing is kept for saving")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFFmpegCaptureSlowStart(t *testing.T) {
	bin := script(t, "sleep 0.3\nhead -c 1600 /dev/zero\nexec sleep 5")
	d := New(Config{FFmpegPath: bin, SampleRate: 8000, StartupTimeout: 100 * time.Millisecond}, logger.Noop())

	done, err := d.OpenCapture(filepath.Join(t.TempDir(), "capture-slow.wav"))
	require.NoError(t, err, "a running process without output yet is started")
	assert.NotNil(t, done)

	require.Eventually(t, func() bool {
		return d.CaptureElapsed() == 100*time.Millisecond
	}, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, d.CloseCapture())
}

func TestFFplayNaturalEnd(t *testing.T) {
	bin := script(t, "sleep 0.1")
	d := New(Config{FFplayPath: bin}, logger.Noop())

	done, err := d.OpenPlayback("/tmp/clip.wav", 2*time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d.PlaybackPosition(), 2*time.Second)

	select {
	case streamErr, ok := <-done:
		assert.False(t, ok)
		assert.NoError(t, streamErr)
	case <-time.After(3 * time.Second):
		t.Fatal("end of stream not reported")
	}

	assert.Zero(t, d.PlaybackPosition())
}

func TestFFplayClose(t *testing.T) {
	bin := script(t, "exec sleep 5")
	d := New(Config{FFplayPath: bin}, logger.Noop())

	done, err := d.OpenPlayback("/tmp/clip.wav", 0)
	require.NoError(t, err)

	require.NoError(t, d.ClosePlayback())

	streamErr, ok := <-done
	assert.False(t, ok, "a requested stop sends no error")
	assert.NoError(t, streamErr)

	assert.NoError(t, d.ClosePlayback())
}
