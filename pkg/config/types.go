// Package config provides configuration management for hikelog.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Journal: %s\n", cfg.Storage.DBPath)
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Storage drivers.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config represents the complete application configuration.
type Config struct {
	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Audio capture and playback settings
	Audio AudioConfig `yaml:"audio"`

	// Reminder settings
	Reminders RemindersConfig `yaml:"reminders"`

	// Sync inbox settings
	Sync SyncConfig `yaml:"sync"`

	// Display settings
	Display DisplayConfig `yaml:"display"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Driver selects the store backend (bolt, sqlite, memory)
	Driver string `yaml:"driver"`

	// Path to the journal database file
	DBPath string `yaml:"db_path"`

	// How long to wait for the database lock
	Timeout time.Duration `yaml:"timeout"`
}

// AudioConfig contains audio device and engine settings.
type AudioConfig struct {
	// Directory for in-flight capture and staged playback files
	TempDir string `yaml:"temp_dir"`

	// Metering and playback position refresh period
	TickInterval time.Duration `yaml:"tick_interval"`

	// Capture sample rate in Hz
	SampleRate int `yaml:"sample_rate"`

	// ffmpeg input format (pulse, avfoundation, dshow); empty selects the platform default
	InputFormat string `yaml:"input_format"`

	// Input device identifier; empty selects the platform default
	InputDevice string `yaml:"input_device"`

	// ffmpeg binary used for capture
	FFmpegPath string `yaml:"ffmpeg_path"`

	// ffplay binary used for playback
	FFplayPath string `yaml:"ffplay_path"`

	// Temp files older than this are swept at startup
	StaleAfter time.Duration `yaml:"stale_after"`
}

// RemindersConfig contains reminder scheduling settings.
type RemindersConfig struct {
	// Schedule reminders while a hike is in progress
	HikeEnabled bool `yaml:"hike_enabled"`

	// Spacing between in-progress reminders
	HikeInterval time.Duration `yaml:"hike_interval"`

	// Number of in-progress reminders per hike
	HikeCount int `yaml:"hike_count"`

	// Schedule a "go for a walk" reminder after a hike ends
	MotivationEnabled bool `yaml:"motivation_enabled"`

	// Days after a hike ends for the motivation reminder
	MotivationDays int `yaml:"motivation_days"`

	// Local wall-clock time of the motivation reminder (HH:MM)
	MotivationTime string `yaml:"motivation_time"`

	// Message pool for in-progress reminders
	Messages []string `yaml:"messages"`

	// Path to the reminder queue database
	QueuePath string `yaml:"queue_path"`

	// How often the daemon checks for due reminders
	PollInterval time.Duration `yaml:"poll_interval"`

	// Optional webhook receiving fired reminders
	WebhookURL string `yaml:"webhook_url"`
}

// SyncConfig contains settings for the sync collaborator inbox.
type SyncConfig struct {
	// Directory where the sync collaborator drops JSONL files
	InboxDir string `yaml:"inbox_dir"`

	// Coalescing window for inbox file events
	Debounce time.Duration `yaml:"debounce"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Default output format (table, json, simple)
	DefaultFormat string `yaml:"default_format"`

	// Enable the live level meter when recording
	Meter bool `yaml:"meter"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// MotivationClock parses MotivationTime into hour and minute.
func (r RemindersConfig) MotivationClock() (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(r.MotivationTime), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMotivationTime, r.MotivationTime)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMotivationTime, r.MotivationTime)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMotivationTime, r.MotivationTime)
	}

	return hour, minute, nil
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverBolt, DriverSQLite:
		if c.Storage.DBPath == "" {
			return ErrEmptyDBPath
		}
	case DriverMemory:
	default:
		return ErrInvalidStorageDriver
	}

	if c.Audio.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	if c.Audio.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}

	if c.Reminders.HikeInterval <= 0 {
		return ErrInvalidHikeInterval
	}
	if c.Reminders.HikeCount < 1 || c.Reminders.HikeCount > 64 {
		return ErrInvalidHikeCount
	}
	if c.Reminders.MotivationDays < 0 {
		return ErrInvalidMotivationDays
	}
	if _, _, err := c.Reminders.MotivationClock(); err != nil {
		return err
	}
	if len(c.Reminders.Messages) == 0 {
		return ErrNoReminderMessages
	}
	if c.Reminders.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.Sync.Debounce < 0 {
		return ErrInvalidDebounce
	}

	validFormats := map[string]bool{
		"table":  true,
		"json":   true,
		"simple": true,
	}
	if !validFormats[c.Display.DefaultFormat] {
		return ErrInvalidDisplayFormat
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	messages := make([]string, len(defaultReminderMessages))
	copy(messages, defaultReminderMessages)

	return &Config{
		Storage: StorageConfig{
			Driver:  DriverBolt,
			DBPath:  defaultDBPath(),
			Timeout: time.Second,
		},
		Audio: AudioConfig{
			TempDir:      defaultTempDir(),
			TickInterval: 100 * time.Millisecond,
			SampleRate:   44100,
			FFmpegPath:   "ffmpeg",
			FFplayPath:   "ffplay",
			StaleAfter:   24 * time.Hour,
		},
		Reminders: RemindersConfig{
			HikeEnabled:       true,
			HikeInterval:      30 * time.Minute,
			HikeCount:         10,
			MotivationEnabled: true,
			MotivationDays:    3,
			MotivationTime:    "10:00",
			Messages:          messages,
			QueuePath:         defaultQueuePath(),
			PollInterval:      30 * time.Second,
		},
		Sync: SyncConfig{
			InboxDir: defaultInboxDir(),
			Debounce: 250 * time.Millisecond,
		},
		Display: DisplayConfig{
			DefaultFormat: "table",
			Meter:         true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
