package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete wheatley configuration
type Config struct {
	Tower   TowerConfig   `mapstructure:"tower" yaml:"tower"`
	Rhythm  RhythmConfig  `mapstructure:"rhythm" yaml:"rhythm"`
	Method  MethodConfig  `mapstructure:"method" yaml:"method"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	TUI     TUIConfig     `mapstructure:"tui" yaml:"tui"`
}

// TowerConfig says which Ringing Room tower to join
type TowerConfig struct {
	// ID is the 9-digit tower ID shown in the tower's URL (0 = must be given on the command line)
	ID int `mapstructure:"id" yaml:"id"`
	// URL is the Ringing Room server people open in their browser
	URL string `mapstructure:"url" yaml:"url"`
	// DialTimeoutSeconds bounds fetching the tower page and opening the socket
	DialTimeoutSeconds int `mapstructure:"dial_timeout_seconds" yaml:"dial_timeout_seconds"`
	// ReconnectAttempts is how many times a dropped connection is re-dialled (0 = never)
	ReconnectAttempts int `mapstructure:"reconnect_attempts" yaml:"reconnect_attempts"`
}

// RhythmConfig tunes how the bot keeps time
type RhythmConfig struct {
	// Inertia controls how slowly the bot adopts a new pace.
	// Values near 0 follow every change at once; 1 never changes pace. (default: 0.5)
	Inertia float64 `mapstructure:"inertia" yaml:"inertia"`
	// HandstrokeGap is the open handstroke lead, measured in blows (default: 1)
	HandstrokeGap float64 `mapstructure:"handstroke_gap" yaml:"handstroke_gap"`
	// MaxRowsInDataset is how many rows of human strikes the pace is fitted to (default: 3)
	MaxRowsInDataset float64 `mapstructure:"max_rows_in_dataset" yaml:"max_rows_in_dataset"`
	// StartDelayMs is the gap between "Look to" and the treble's first stroke (default: 3000)
	StartDelayMs int `mapstructure:"start_delay_ms" yaml:"start_delay_ms"`
}

// MethodConfig controls what the bot rings once the band goes into changes
type MethodConfig struct {
	// Name selects the row generator
	// Options: "plain_hunt", "place_notation"
	Name string `mapstructure:"name" yaml:"name"`
	// PlaceNotation is one lead of the method, e.g. "x16x16x16,12" (place_notation only)
	PlaceNotation string `mapstructure:"place_notation" yaml:"place_notation"`
	// Stage is the number of bells the method is for (0 = the tower's number of bells)
	Stage int `mapstructure:"stage" yaml:"stage"`
	// Bob is the lead-end change rung for a bob (default: "14")
	Bob string `mapstructure:"bob" yaml:"bob"`
	// Single is the lead-end change rung for a single (default: "1234")
	Single string `mapstructure:"single" yaml:"single"`
	// UpDownIn goes into changes after two rows of rounds without waiting for "Go" (default: true)
	UpDownIn bool `mapstructure:"up_down_in" yaml:"up_down_in"`
}

// LoggingConfig controls the session log
type LoggingConfig struct {
	// Enabled writes a JSON log of the session (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the minimum level written
	// Options: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where wheatley.log is written (default: <config dir>/logs)
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TUIConfig controls the terminal monitor
type TUIConfig struct {
	// Enabled shows the live monitor when stdout is a terminal (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// MaxRows is how many recent rows the monitor keeps on screen (default: 12)
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows"`
}

// Method names
const (
	MethodPlainHunt     = "plain_hunt"
	MethodPlaceNotation = "place_notation"
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Tower: TowerConfig{
			ID:                 0,
			URL:                "https://ringingroom.com",
			DialTimeoutSeconds: 10,
			ReconnectAttempts:  3,
		},
		Rhythm: RhythmConfig{
			Inertia:          0.5,
			HandstrokeGap:    1,
			MaxRowsInDataset: 3,
			StartDelayMs:     3000,
		},
		Method: MethodConfig{
			Name:          MethodPlainHunt,
			PlaceNotation: "",
			Stage:         0,
			Bob:           "14",
			Single:        "1234",
			UpDownIn:      true,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
		TUI: TUIConfig{
			Enabled: true,
			MaxRows: 12,
		},
	}
}

// DialTimeout returns the dial timeout as a time.Duration
func (c *TowerConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// StartDelay returns the start delay as a time.Duration
func (c *RhythmConfig) StartDelay() time.Duration {
	return time.Duration(c.StartDelayMs) * time.Millisecond
}

// ResolveDir returns the directory the session log is written to.
func (c *LoggingConfig) ResolveDir() string {
	if c.Dir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}
	if len(c.Dir) >= 2 && c.Dir[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, c.Dir[2:])
		}
	}
	return c.Dir
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Tower defaults
	viper.SetDefault("tower.id", defaults.Tower.ID)
	viper.SetDefault("tower.url", defaults.Tower.URL)
	viper.SetDefault("tower.dial_timeout_seconds", defaults.Tower.DialTimeoutSeconds)
	viper.SetDefault("tower.reconnect_attempts", defaults.Tower.ReconnectAttempts)

	// Rhythm defaults
	viper.SetDefault("rhythm.inertia", defaults.Rhythm.Inertia)
	viper.SetDefault("rhythm.handstroke_gap", defaults.Rhythm.HandstrokeGap)
	viper.SetDefault("rhythm.max_rows_in_dataset", defaults.Rhythm.MaxRowsInDataset)
	viper.SetDefault("rhythm.start_delay_ms", defaults.Rhythm.StartDelayMs)

	// Method defaults
	viper.SetDefault("method.name", defaults.Method.Name)
	viper.SetDefault("method.place_notation", defaults.Method.PlaceNotation)
	viper.SetDefault("method.stage", defaults.Method.Stage)
	viper.SetDefault("method.bob", defaults.Method.Bob)
	viper.SetDefault("method.single", defaults.Method.Single)
	viper.SetDefault("method.up_down_in", defaults.Method.UpDownIn)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// TUI defaults
	viper.SetDefault("tui.enabled", defaults.TUI.Enabled)
	viper.SetDefault("tui.max_rows", defaults.TUI.MaxRows)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wheatley")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wheatley"
	}
	return filepath.Join(home, ".config", "wheatley")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidMethodNames returns the list of valid method.name values
func ValidMethodNames() []string {
	return []string{MethodPlainHunt, MethodPlaceNotation}
}
