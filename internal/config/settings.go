package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
)

// Settings is the user-editable part of the configuration persisted as YAML.
// Zero values mean "not set" and leave the defaults in place.
type Settings struct {
	Plan             string  `yaml:"plan,omitempty"`
	WindowHours      int     `yaml:"window_hours,omitempty"`
	WarningThreshold float64 `yaml:"warning_threshold,omitempty"`
	RefreshInterval  string  `yaml:"refresh_interval,omitempty"`
	Cooldown         string  `yaml:"notification_cooldown,omitempty"`
	LogRoot          string  `yaml:"claude_dir,omitempty"`
}

// LoadSettings reads the settings file. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return &s, nil
}

// SaveSettings writes the settings file atomically.
func SaveSettings(path string, s *Settings) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	// Write to temp file first, then rename
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Apply copies every set field onto cfg.
func (s *Settings) Apply(cfg *Config) error {
	if s.Plan != "" {
		plan, err := ParsePlan(s.Plan)
		if err != nil {
			return err
		}
		cfg.SetPlan(plan)
	}
	if s.WindowHours != 0 {
		cfg.WindowHours = s.WindowHours
	}
	if s.WarningThreshold != 0 {
		cfg.WarningThreshold = s.WarningThreshold
	}
	if s.RefreshInterval != "" {
		d, err := time.ParseDuration(s.RefreshInterval)
		if err != nil {
			return fmt.Errorf("%w: refresh_interval: %v", ErrInvalidConfig, err)
		}
		cfg.RefreshInterval = d
	}
	if s.Cooldown != "" {
		d, err := time.ParseDuration(s.Cooldown)
		if err != nil {
			return fmt.Errorf("%w: notification_cooldown: %v", ErrInvalidConfig, err)
		}
		cfg.Cooldown = d
	}
	if s.LogRoot != "" {
		cfg.LogRoot = s.LogRoot
	}
	return nil
}

// SavePlan updates only the plan in the settings file, keeping other fields.
func SavePlan(path string, plan Plan) error {
	s, err := LoadSettings(path)
	if err != nil {
		return err
	}
	s.Plan = plan.String()
	return SaveSettings(path, s)
}
