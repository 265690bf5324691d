package config

import (
	"os"
	"path/filepath"
)

// defaultReminderMessages is the message pool for in-progress hike reminders.
var defaultReminderMessages = []string{
	"Still on the trail? Jot down what you are seeing.",
	"Take a breath and look around. Anything worth a voice note?",
	"How are your legs holding up? Log a quick observation.",
	"Spotted any wildlife? Capture it before you forget.",
	"Time for a water break and a photo.",
	"Notice the sounds around you. Record a few seconds.",
	"Check in with yourself: how is your mood right now?",
	"Remember to look back at the path you came from.",
	"A good moment to note the weather and the light.",
	"Keep going, and keep noticing.",
}

// appDir returns ~/.config/hikelog, or "." when no home directory is available.
func appDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(homeDir, ".config", "hikelog")
}

// defaultDBPath returns the default journal database path.
//
// Returns: ~/.config/hikelog/journal.db.
func defaultDBPath() string {
	return filepath.Join(appDir(), "journal.db")
}

// defaultQueuePath returns the default reminder queue path.
//
// Returns: ~/.config/hikelog/reminders.db.
func defaultQueuePath() string {
	return filepath.Join(appDir(), "reminders.db")
}

// defaultInboxDir returns the directory the sync collaborator drops files into.
//
// Returns: ~/.config/hikelog/inbox/.
func defaultInboxDir() string {
	return filepath.Join(appDir(), "inbox")
}

// defaultTempDir returns the directory for in-flight capture files.
func defaultTempDir() string {
	return filepath.Join(os.TempDir(), "hikelog-capture")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/hikelog/config.yaml.
func defaultConfigPath() string {
	return filepath.Join(appDir(), "config.yaml")
}

// DefaultConfigPath returns the path used when no config file is given.
func DefaultConfigPath() string {
	return defaultConfigPath()
}
