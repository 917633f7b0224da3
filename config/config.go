// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
)

const (
	appName        = "voxstream"
	configFileName = "config.json"
)

// Defaults applied to new profiles.
const (
	DefaultModel          = "gemini-2.0-flash-live-001"
	DefaultTargetLanguage = "English"
	DefaultSpeakingRate   = 1.0
)

// Profile is one named session setup: which model to stream against,
// what language to translate into, and how synthesis should sound.
type Profile struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Model          string  `json:"model"`
	TargetLanguage string  `json:"target_language"`
	Voice          string  `json:"voice,omitempty"`
	SpeakingRate   float64 `json:"speaking_rate,omitempty"`
	Active         bool    `json:"active"`
}

// Config represents the application configuration.
type Config struct {
	// APIKey authenticates every streaming connection.
	APIKey   string    `json:"api_key,omitempty"`
	Profiles []Profile `json:"profiles,omitempty"`
	// RecordingDir is where completion artifacts are exported. Empty
	// disables export.
	RecordingDir string `json:"recording_dir,omitempty"`

	path string
}

// Load loads configuration from the config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			cfg.path = path
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.path = path
	return &cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := configPath()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// AddProfile adds a new session profile.
func (c *Config) AddProfile(p Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	applyDefaults(&p)

	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	// First profile or explicitly active: deactivate others
	if len(c.Profiles) == 0 || p.Active {
		for i := range c.Profiles {
			c.Profiles[i].Active = false
		}
		p.Active = true
	}

	c.Profiles = append(c.Profiles, p)
	return c.Save()
}

// UpdateProfile updates an existing profile.
func (c *Config) UpdateProfile(id string, p Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	applyDefaults(&p)

	idx := slices.IndexFunc(c.Profiles, func(x Profile) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("profile not found: %s", id)
	}

	wasActive := c.Profiles[idx].Active
	if p.Active && !wasActive {
		for i := range c.Profiles {
			c.Profiles[i].Active = false
		}
	} else {
		p.Active = wasActive
	}

	p.ID = id // Preserve ID
	c.Profiles[idx] = p
	return c.Save()
}

// RemoveProfile removes a profile by ID.
func (c *Config) RemoveProfile(id string) error {
	idx := slices.IndexFunc(c.Profiles, func(p Profile) bool {
		return p.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("profile not found: %s", id)
	}

	wasActive := c.Profiles[idx].Active
	c.Profiles = slices.Delete(c.Profiles, idx, idx+1)

	if wasActive && len(c.Profiles) > 0 {
		c.Profiles[0].Active = true
	}

	return c.Save()
}

// SetProfileActive checks that the profile exists and sets it active.
func (c *Config) SetProfileActive(id string) error {
	found := false
	for i := range c.Profiles {
		if c.Profiles[i].ID == id {
			c.Profiles[i].Active = true
			found = true
		} else {
			c.Profiles[i].Active = false
		}
	}
	if !found {
		return fmt.Errorf("profile not found: %s", id)
	}
	return c.Save()
}

// ActiveProfile returns the currently active profile.
func (c *Config) ActiveProfile() *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].Active {
			p := c.Profiles[i]
			return &p
		}
	}
	// Auto-activate first if none active
	if len(c.Profiles) > 0 {
		c.Profiles[0].Active = true
		_ = c.Save()
		p := c.Profiles[0]
		return &p
	}
	return nil
}

// Helper functions

func validateProfile(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name required")
	}
	if p.SpeakingRate < 0 {
		return fmt.Errorf("speaking rate must be positive")
	}
	return nil
}

func applyDefaults(p *Profile) {
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.TargetLanguage == "" {
		p.TargetLanguage = DefaultTargetLanguage
	}
	if p.SpeakingRate == 0 {
		p.SpeakingRate = DefaultSpeakingRate
	}
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func defaultConfig() *Config {
	return &Config{
		Profiles: []Profile{},
	}
}
