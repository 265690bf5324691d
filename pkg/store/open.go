package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xmhha/hikelog/pkg/logger"
)

// Open creates the store selected by cfg.Driver.
func Open(cfg Config, log logger.Logger) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "bolt":
		return NewBolt(cfg, log)
	case "sqlite":
		return NewSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
