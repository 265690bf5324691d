package inbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/0xmhha/hikelog/pkg/logger"
)

const (
	// MaxFileSize is the largest inbox file the reader accepts (100MB).
	MaxFileSize = 100 * 1024 * 1024

	// MaxLineLength caps a single record line (1MB).
	MaxLineLength = 1024 * 1024
)

// Reader reads new records from inbox files.
type Reader struct {
	positions PositionStore
	logger    logger.Logger
}

// NewReader creates an incremental reader.
//
// Parameters:
//   - positions: Offset persistence (nil for in-memory)
//   - log: Logger instance
func NewReader(positions PositionStore, log logger.Logger) *Reader {
	if positions == nil {
		positions = NewMemoryPositionStore()
	}
	return &Reader{
		positions: positions,
		logger:    log.Component("inbox"),
	}
}

// Read returns records appended to path since the last call and advances
// the stored offset. Only newline-terminated lines are consumed, so a line
// the collaborator is still writing is picked up next time. Malformed lines
// are logged and skipped. A file that shrank is re-read from the start; a
// missing file yields no records.
func (r *Reader) Read(ctx context.Context, path string) ([]*Record, error) {
	offset, err := r.positions.GetPosition(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("inbox file gone", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s size=%d", ErrFileTooLarge, path, info.Size())
	}
	if info.Size() < offset {
		r.logger.Warn("inbox file shrank, reading from start",
			"path", path,
			"offset", offset,
			"size", info.Size())
		offset = 0
	}

	records, newOffset, err := r.readFrom(ctx, path, offset)
	if err != nil {
		return nil, err
	}

	if newOffset != offset {
		if err := r.positions.SetPosition(path, newOffset); err != nil {
			return nil, fmt.Errorf("failed to store position: %w", err)
		}
	}

	r.logger.Debug("inbox read",
		"path", path,
		"records", len(records),
		"offset", newOffset)

	return records, nil
}

func (r *Reader) readFrom(ctx context.Context, path string, offset int64) ([]*Record, int64, error) {
	f, err := os.Open(path) // #nosec G304 -- inbox path from config
	if err != nil {
		return nil, offset, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, offset, fmt.Errorf("failed to seek to %d: %w", offset, err)
		}
	}

	br := bufio.NewReaderSize(f, 64*1024)
	var records []*Record

	for {
		if err := ctx.Err(); err != nil {
			return nil, offset, err
		}

		line, err := br.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			// Partial trailing line stays unread.
			return records, offset, nil
		}
		if err != nil {
			return nil, offset, fmt.Errorf("failed to read %s: %w", path, err)
		}

		lineStart := offset
		offset += int64(len(line))

		if len(line) > MaxLineLength {
			r.logger.Warn("skipping oversized inbox line", "path", path, "offset", lineStart)
			continue
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		rec, err := ParseLine(string(line))
		if err != nil {
			r.logger.Warn("skipping inbox line",
				"path", path,
				"offset", lineStart,
				"error", err)
			continue
		}
		records = append(records, rec)
	}
}
