package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidStorageDriver is returned when the storage driver is not recognized.
	ErrInvalidStorageDriver = errors.New("invalid storage driver: must be bolt, sqlite, or memory")

	// ErrEmptyDBPath is returned when a persistent driver has no database path.
	ErrEmptyDBPath = errors.New("database path cannot be empty")

	// ErrInvalidTickInterval is returned when the audio tick interval is <= 0.
	ErrInvalidTickInterval = errors.New("invalid audio tick interval: must be > 0")

	// ErrInvalidSampleRate is returned when the sample rate is <= 0.
	ErrInvalidSampleRate = errors.New("invalid sample rate: must be > 0")

	// ErrInvalidHikeInterval is returned when the hike reminder interval is <= 0.
	ErrInvalidHikeInterval = errors.New("invalid hike reminder interval: must be > 0")

	// ErrInvalidHikeCount is returned when the hike reminder count is outside 1..64.
	ErrInvalidHikeCount = errors.New("invalid hike reminder count: must be between 1 and 64")

	// ErrInvalidMotivationDays is returned when motivation days is negative.
	ErrInvalidMotivationDays = errors.New("invalid motivation days: must be >= 0")

	// ErrInvalidMotivationTime is returned when the motivation time is not HH:MM.
	ErrInvalidMotivationTime = errors.New("invalid motivation time: must be HH:MM")

	// ErrNoReminderMessages is returned when the reminder message pool is empty.
	ErrNoReminderMessages = errors.New("reminder message pool cannot be empty")

	// ErrInvalidPollInterval is returned when the notification poll interval is <= 0.
	ErrInvalidPollInterval = errors.New("invalid notification poll interval: must be > 0")

	// ErrInvalidDebounce is returned when the sync debounce interval is < 0.
	ErrInvalidDebounce = errors.New("invalid sync debounce: must be >= 0")

	// ErrInvalidDisplayFormat is returned when display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, json, or simple")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
