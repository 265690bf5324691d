package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupStale removes capture and playback temp files older than olderThan.
// It is meant for startup, before any recording begins; files of the current
// capture are never touched. Returns the number of files removed.
func (e *Engine) CleanupStale(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(e.config.TempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read temp directory: %w", err)
	}

	e.mu.Lock()
	active := e.tempPath
	var pending string
	if e.pending != nil {
		pending = e.pending.TempPath
	}
	e.mu.Unlock()

	cutoff := e.clock.Now().Add(-olderThan)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !isTempName(entry.Name()) {
			continue
		}

		path := filepath.Join(e.config.TempDir, entry.Name())
		if path == active || path == pending {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			e.logger.Warn("cleanup: failed to remove file", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		e.logger.Info("cleanup: removed stale temp files", "count", removed)
	}
	return removed, nil
}

func isTempName(name string) bool {
	return (strings.HasPrefix(name, "capture-") || strings.HasPrefix(name, "playback-")) &&
		strings.HasSuffix(name, ".wav")
}
