package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Settings holds the agent's runtime configuration.
type Settings struct {
	// SelfEmail is the account owner's address, used to detect the user's
	// own attendee entry on calendar events. When empty the declined-event
	// filter is a no-op.
	SelfEmail string `json:"selfEmail"`

	Model               string `json:"model"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds"`
	PollGmail           bool   `json:"pollGmail"`
	PollCalendar        bool   `json:"pollCalendar"`

	// PreferencesFile is an optional free-text file whose contents are
	// included verbatim in every LLM prompt.
	PreferencesFile string `json:"preferencesFile"`

	TokenFile       string `json:"tokenFile"`
	CredentialsFile string `json:"credentialsFile"`

	// Timezone is the IANA zone used to render event times.
	Timezone string `json:"timezone"`
}

// Defaults returns the settings used when no config file exists yet.
func Defaults() Settings {
	return Settings{
		Model:               "gpt-4o-mini",
		PollIntervalSeconds: 60,
		PollGmail:           true,
		PollCalendar:        false,
		PreferencesFile:     "PREFERENCES.md",
		TokenFile:           "token.json",
		CredentialsFile:     "credentials.json",
		Timezone:            "Europe/London",
	}
}

// PollInterval returns the poll interval as a duration.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// Location resolves the configured timezone, falling back to UTC when the
// zone database doesn't know it.
func (s Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Manager handles loading, saving, and accessing the settings file.
type Manager struct {
	filePath string
	settings Settings
	mu       sync.RWMutex
}

// NewManager creates a settings manager backed by the given file. A missing
// file is created with defaults; a malformed one is an error.
func NewManager(filePath string) (*Manager, error) {
	m := &Manager{
		filePath: filePath,
		settings: Defaults(),
	}
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads the settings file, layering its values over the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.settings = Defaults()
			return m.save()
		}
		return err
	}

	settings := Defaults()
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("parse settings file %s: %w", m.filePath, err)
	}
	m.settings = settings
	return nil
}

// save writes the current settings to the file. Callers hold the lock.
func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.filePath, data, 0644)
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}
