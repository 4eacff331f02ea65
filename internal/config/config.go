// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned by Validate for out-of-range values.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration.
type Config struct {
	LogRoot      string
	DatabasePath string
	SettingsPath string
	LogFile      string
	LogLevel     string
	MetricsAddr  string

	Plan              Plan
	TokenLimit        uint64
	WindowHours       int
	WarningThreshold  float64
	CriticalThreshold float64
	Cooldown          time.Duration
	RefreshInterval   time.Duration
	DebounceDelay     time.Duration
	NotifyBurst       int
}

// Default values
const (
	DefaultPlan              = PlanMax5x
	DefaultWindowHours       = 5
	DefaultWarningThreshold  = 90.0
	CriticalThreshold        = 95.0
	DefaultCooldown          = 15 * time.Minute
	DefaultRefreshInterval   = 30 * time.Second
	DefaultDebounceDelay     = 500 * time.Millisecond
	DefaultNotifyBurst       = 2
	minRefreshInterval       = time.Second
	configDirName            = ".claude-monitor"
	settingsFileName         = "settings.yaml"
	databaseFileName         = "usage.db"
	logFileRelativeToConfDir = "logs/monitor.log"
)

// Load reads configuration from .env files, the settings file and environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := Default()
	cfg.SettingsPath = getEnvString("SETTINGS_PATH", cfg.SettingsPath)

	settings, err := LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	if err := settings.Apply(cfg); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	confDir := getDefaultConfigDir()
	return &Config{
		LogRoot:           getDefaultLogRoot(),
		DatabasePath:      filepath.Join(confDir, databaseFileName),
		SettingsPath:      filepath.Join(confDir, settingsFileName),
		LogFile:           filepath.Join(confDir, filepath.FromSlash(logFileRelativeToConfDir)),
		LogLevel:          "info",
		Plan:              DefaultPlan,
		TokenLimit:        DefaultPlan.TokenLimit(),
		WindowHours:       DefaultWindowHours,
		WarningThreshold:  DefaultWarningThreshold,
		CriticalThreshold: CriticalThreshold,
		Cooldown:          DefaultCooldown,
		RefreshInterval:   DefaultRefreshInterval,
		DebounceDelay:     DefaultDebounceDelay,
		NotifyBurst:       DefaultNotifyBurst,
	}
}

func applyEnv(cfg *Config) error {
	if name := os.Getenv("USAGE_PLAN"); name != "" {
		plan, err := ParsePlan(name)
		if err != nil {
			return err
		}
		cfg.SetPlan(plan)
	}

	cfg.TokenLimit = getEnvUint("TOKEN_LIMIT", cfg.TokenLimit)
	cfg.WindowHours = getEnvInt("WINDOW_HOURS", cfg.WindowHours)
	cfg.WarningThreshold = getEnvFloat("WARNING_THRESHOLD", cfg.WarningThreshold)
	cfg.Cooldown = getEnvDuration("NOTIFY_COOLDOWN", cfg.Cooldown)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", cfg.RefreshInterval)
	cfg.DebounceDelay = getEnvDuration("DEBOUNCE_DELAY", cfg.DebounceDelay)
	cfg.NotifyBurst = getEnvInt("NOTIFY_BURST", cfg.NotifyBurst)
	cfg.LogRoot = getEnvString("CLAUDE_LOG_DIR", cfg.LogRoot)
	cfg.DatabasePath = getEnvString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogFile = getEnvString("LOG_FILE", cfg.LogFile)
	cfg.LogLevel = getEnvString("LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsAddr = getEnvString("METRICS_ADDR", cfg.MetricsAddr)
	return nil
}

// SetPlan switches the plan and the token limit derived from it.
func (c *Config) SetPlan(p Plan) {
	c.Plan = p
	c.TokenLimit = p.TokenLimit()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.WindowHours <= 0:
		return fmt.Errorf("%w: window_hours must be positive, got %d", ErrInvalidConfig, c.WindowHours)
	case c.WarningThreshold <= 0 || c.WarningThreshold > 100:
		return fmt.Errorf("%w: warning_threshold must be in (0, 100], got %.1f", ErrInvalidConfig, c.WarningThreshold)
	case c.RefreshInterval < minRefreshInterval:
		return fmt.Errorf("%w: refresh_interval must be at least %s, got %s", ErrInvalidConfig, minRefreshInterval, c.RefreshInterval)
	case c.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidConfig)
	case c.DebounceDelay <= 0:
		return fmt.Errorf("%w: debounce delay must be positive", ErrInvalidConfig)
	case c.LogRoot == "":
		return fmt.Errorf("%w: log root is empty", ErrInvalidConfig)
	}
	return nil
}

// Window returns the window length as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, configDirName, ".env"),
			filepath.Join(home, ".config", "usagemon", ".env"),
		)
	}

	return paths
}

// getDefaultConfigDir returns the per-user directory for settings, database and logs.
func getDefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(home, configDirName)
}

// getDefaultLogRoot returns the directory Claude Code writes session logs to.
func getDefaultLogRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".claude", "projects")
	}
	return filepath.Join(home, ".claude", "projects")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
