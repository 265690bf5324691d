package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
)

// ErrInvalidWAV is returned when data is not a PCM WAV file.
var ErrInvalidWAV = errors.New("invalid wav data")

// WAVWriter writes 16-bit PCM into a seekable file and patches the RIFF
// sizes on Close.
type WAVWriter struct {
	w          io.WriteSeeker
	sampleRate int
	channels   int
	dataBytes  int64
}

// NewWAVWriter writes a placeholder header and returns a writer for PCM data.
func NewWAVWriter(w io.WriteSeeker, sampleRate, channels int) (*WAVWriter, error) {
	ww := &WAVWriter{w: w, sampleRate: sampleRate, channels: channels}
	if _, err := w.Write(ww.header()); err != nil {
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}
	return ww, nil
}

// Write appends raw S16LE samples.
func (ww *WAVWriter) Write(p []byte) (int, error) {
	n, err := ww.w.Write(p)
	ww.dataBytes += int64(n)
	return n, err
}

// Close rewrites the header with the final sizes. It does not close the
// underlying file.
func (ww *WAVWriter) Close() error {
	if _, err := ww.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek wav header: %w", err)
	}
	if _, err := ww.w.Write(ww.header()); err != nil {
		return fmt.Errorf("failed to rewrite wav header: %w", err)
	}
	_, err := ww.w.Seek(0, io.SeekEnd)
	return err
}

func (ww *WAVWriter) header() []byte {
	blockAlign := ww.channels * bitsPerSample / 8
	byteRate := ww.sampleRate * blockAlign

	h := make([]byte, wavHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+ww.dataBytes))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], uint16(ww.channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(ww.sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:], bitsPerSample)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(ww.dataBytes))
	return h
}

// WAVDuration decodes the playing time of a PCM WAV payload.
func WAVDuration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, ErrInvalidWAV
	}

	var byteRate uint32
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := pos + 8

		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return 0, ErrInvalidWAV
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8:])
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("%w: data chunk before fmt", ErrInvalidWAV)
			}
			// Trust the bytes present over a size left unpatched by a crash.
			if avail := len(data) - body; size > avail || size == 0 {
				size = avail
			}
			return time.Duration(float64(size) / float64(byteRate) * float64(time.Second)), nil
		}

		pos = body + size + size%2
	}

	return 0, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}
