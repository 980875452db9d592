package paloma

import (
	"os"
	"strings"
	"sync"

	"github.com/piquadrat/paloma/libs/mailer"
)

// Settings holds the process-wide mail defaults.
type Settings struct {
	// DefaultFromEmail is used when a Mail declares no sender address.
	DefaultFromEmail string
	// DefaultFromName is used when a Mail declares no sender name.
	DefaultFromName string
	// Mailer delivers messages for declarations built without WithMailer.
	Mailer *mailer.Mailer
}

var (
	settingsMu sync.RWMutex
	settings   Settings
)

// Configure replaces the process-wide settings.
func Configure(s Settings) {
	settingsMu.Lock()
	settings = s
	settingsMu.Unlock()
}

// CurrentSettings returns a copy of the process-wide settings.
func CurrentSettings() Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings
}

// OverrideSettings installs s and returns a function restoring the previous
// settings. Overrides nest when restored in reverse order.
func OverrideSettings(s Settings) (restore func()) {
	settingsMu.Lock()
	previous := settings
	settings = s
	settingsMu.Unlock()

	return func() {
		Configure(previous)
	}
}

// SettingsFromEnv reads DEFAULT_FROM_EMAIL and DEFAULT_FROM_NAME. The Mailer
// field is left nil.
func SettingsFromEnv() Settings {
	return Settings{
		DefaultFromEmail: strings.TrimSpace(os.Getenv("DEFAULT_FROM_EMAIL")),
		DefaultFromName:  strings.TrimSpace(os.Getenv("DEFAULT_FROM_NAME")),
	}
}
