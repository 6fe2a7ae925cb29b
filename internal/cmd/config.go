package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/wheatley/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify wheatley configuration",
	Long: `View or modify wheatley configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  wheatley config set tower.id 123456789
  wheatley config set rhythm.inertia 0.3
  wheatley config set method.name place_notation

Run 'wheatley config show' to see every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/wheatley/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}
	return writeConfigYAML(out, cfg)
}

func writeConfigYAML(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// settableKeys maps each key accepted by "config set" to its value kind.
var settableKeys = map[string]string{
	"tower.id":                   "int",
	"tower.url":                  "string",
	"tower.dial_timeout_seconds": "int",
	"tower.reconnect_attempts":   "int",
	"rhythm.inertia":             "float",
	"rhythm.handstroke_gap":      "float",
	"rhythm.max_rows_in_dataset": "float",
	"rhythm.start_delay_ms":      "int",
	"method.name":                "string",
	"method.place_notation":      "string",
	"method.stage":               "int",
	"method.bob":                 "string",
	"method.single":              "string",
	"method.up_down_in":          "bool",
	"logging.enabled":            "bool",
	"logging.level":              "string",
	"logging.dir":                "string",
	"tui.enabled":                "bool",
	"tui.max_rows":               "int",
}

// parseConfigValue converts a command line value to the type stored under key.
func parseConfigValue(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		keys := make([]string, 0, len(settableKeys))
		for k := range settableKeys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(keys, ", "))
	}

	switch kind {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		v, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return v, nil
	case "float":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected number", key)
		}
		return v, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)

	// Reject values that leave the configuration invalid as a whole
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)

	return nil
}

// configTemplate is written by "config init".
const configTemplate = `# Wheatley Configuration
# Every key can also be set with an environment variable, e.g. WHEATLEY_TOWER_ID

# The Ringing Room tower to join
tower:
  # 9-digit tower ID (can also be given as 'wheatley ring <id>')
  id: 0
  url: https://ringingroom.com
  # Seconds allowed for finding the tower's server and connecting
  dial_timeout_seconds: 10
  # How many times to reconnect after losing the tower (0 = never)
  reconnect_attempts: 3

# How the bot keeps time
rhythm:
  # How slowly the bot adopts a new speed: near 0 follows at once, 1 never changes
  inertia: 0.5
  # Length of the open handstroke lead, in blows
  handstroke_gap: 1
  # How many rows of human strikes the speed is worked out from
  max_rows_in_dataset: 3
  # Milliseconds between "Look to" and the first stroke
  start_delay_ms: 3000

# What the bot rings once the band goes into changes
method:
  # Options: plain_hunt, place_notation
  name: plain_hunt
  # One lead of the method, e.g. x16x16x16,12 for Plain Bob Minor
  place_notation: ""
  # Number of bells the method is for (0 = the tower's number of bells)
  stage: 0
  bob: "14"
  single: "1234"
  # Go into changes after two rows of rounds without waiting for "Go"
  up_down_in: true

# Session log
logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info
  # Directory for wheatley.log (default: ~/.config/wheatley/logs)
  dir: ""

# Live terminal monitor
tui:
  enabled: true
  # Rows kept on screen
  max_rows: 12
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'wheatley config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize wheatley's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/wheatley/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: WHEATLEY_* (e.g., WHEATLEY_RHYTHM_INERTIA)")

	return nil
}
