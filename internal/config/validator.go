package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/rowgen"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "rhythm.inertia")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateTower()...)
	errors = append(errors, c.validateRhythm()...)
	errors = append(errors, c.validateMethod()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTUI()...)

	return errors
}

// validateTower validates the TowerConfig
func (c *Config) validateTower() []ValidationError {
	var errors []ValidationError

	if c.Tower.ID < 0 {
		errors = append(errors, ValidationError{
			Field:   "tower.id",
			Value:   c.Tower.ID,
			Message: "must be non-negative",
		})
	}

	if u, err := url.Parse(c.Tower.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "tower.url",
			Value:   c.Tower.URL,
			Message: "must be an http or https URL",
		})
	}

	if c.Tower.DialTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "tower.dial_timeout_seconds",
			Value:   c.Tower.DialTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	if c.Tower.ReconnectAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "tower.reconnect_attempts",
			Value:   c.Tower.ReconnectAttempts,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateRhythm validates the RhythmConfig
func (c *Config) validateRhythm() []ValidationError {
	var errors []ValidationError

	if c.Rhythm.Inertia <= 0 || c.Rhythm.Inertia > 1 {
		errors = append(errors, ValidationError{
			Field:   "rhythm.inertia",
			Value:   c.Rhythm.Inertia,
			Message: "must be greater than 0 and at most 1",
		})
	}

	if c.Rhythm.HandstrokeGap < 0 {
		errors = append(errors, ValidationError{
			Field:   "rhythm.handstroke_gap",
			Value:   c.Rhythm.HandstrokeGap,
			Message: "must be non-negative",
		})
	}

	if c.Rhythm.MaxRowsInDataset <= 0 {
		errors = append(errors, ValidationError{
			Field:   "rhythm.max_rows_in_dataset",
			Value:   c.Rhythm.MaxRowsInDataset,
			Message: "must be positive",
		})
	}

	if c.Rhythm.StartDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "rhythm.start_delay_ms",
			Value:   c.Rhythm.StartDelayMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateMethod validates the MethodConfig. Place notation is parsed here
// so that a typo is reported before the bot joins a tower.
func (c *Config) validateMethod() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidMethodNames(), c.Method.Name) {
		errors = append(errors, ValidationError{
			Field:   "method.name",
			Value:   c.Method.Name,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidMethodNames(), ", ")),
		})
	}

	if c.Method.Stage != 0 && (c.Method.Stage < 3 || c.Method.Stage > bell.MaxStage) {
		errors = append(errors, ValidationError{
			Field:   "method.stage",
			Value:   c.Method.Stage,
			Message: fmt.Sprintf("must be 0 or between 3 and %d", bell.MaxStage),
		})
		return errors
	}

	if c.Method.Name != MethodPlaceNotation {
		return errors
	}

	if c.Method.PlaceNotation == "" {
		errors = append(errors, ValidationError{
			Field:   "method.place_notation",
			Value:   c.Method.PlaceNotation,
			Message: "is required when method.name is place_notation",
		})
		return errors
	}
	if c.Method.Stage == 0 {
		errors = append(errors, ValidationError{
			Field:   "method.stage",
			Value:   c.Method.Stage,
			Message: "is required when method.name is place_notation",
		})
		return errors
	}

	if _, err := rowgen.NewPlaceNotation(c.Method.Stage, c.Method.PlaceNotation, c.Method.Bob, c.Method.Single); err != nil {
		errors = append(errors, ValidationError{
			Field:   "method.place_notation",
			Value:   c.Method.PlaceNotation,
			Message: err.Error(),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.MaxRows < 1 || c.TUI.MaxRows > 100 {
		errors = append(errors, ValidationError{
			Field:   "tui.max_rows",
			Value:   c.TUI.MaxRows,
			Message: "must be between 1 and 100",
		})
	}

	return errors
}
