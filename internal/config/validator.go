package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "readiness.mode")
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

// ValidSources returns the list of valid event sources
func ValidSources() []string {
	return []string{SourceMonitor, SourceStdin, SourceScreenSaver, SourceLogind, SourceIdle}
}

// ValidReadinessModes returns the list of valid readiness modes
func ValidReadinessModes() []string {
	return []string{ReadinessDelay, ReadinessPoll}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "port",
			Value:   c.Port,
			Message: "must be between 1 and 65535",
		})
	}

	if c.ContentDirectory == "" {
		errors = append(errors, ValidationError{
			Field:   "content_directory",
			Value:   c.ContentDirectory,
			Message: "must not be empty",
		})
	}

	if !slices.Contains(ValidSources(), c.Source) {
		errors = append(errors, ValidationError{
			Field:   "source",
			Value:   c.Source,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSources(), ", ")),
		})
	}

	errors = append(errors, c.validateSource()...)
	errors = append(errors, c.validateCommands()...)
	errors = append(errors, c.validateReadiness()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateSource() []ValidationError {
	var errors []ValidationError

	switch c.Source {
	case SourceMonitor:
		if len(c.Monitor.Command) == 0 || c.Monitor.Command[0] == "" {
			errors = append(errors, ValidationError{
				Field:   "monitor.command",
				Value:   c.Monitor.Command,
				Message: "must not be empty when source is monitor",
			})
		}
	case SourceIdle:
		if c.Idle.Timeout <= 0 {
			errors = append(errors, ValidationError{
				Field:   "idle.timeout",
				Value:   c.Idle.Timeout,
				Message: "must be positive",
			})
		}
	case SourceLogind:
		if c.Logind.SessionID == "" {
			errors = append(errors, ValidationError{
				Field:   "logind.session_id",
				Value:   c.Logind.SessionID,
				Message: "must be set, or XDG_SESSION_ID must be present, when source is logind",
			})
		}
	}

	return errors
}

func (c *Config) validateCommands() []ValidationError {
	var errors []ValidationError

	if len(c.Server.Command) == 0 || c.Server.Command[0] == "" {
		errors = append(errors, ValidationError{
			Field:   "server.command",
			Value:   c.Server.Command,
			Message: "must not be empty",
		})
	}

	if c.Browser.Command == "" {
		errors = append(errors, ValidationError{
			Field:   "browser.command",
			Value:   c.Browser.Command,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateReadiness() []ValidationError {
	var errors []ValidationError

	switch c.Readiness.Mode {
	case ReadinessDelay:
		if c.Readiness.Delay < 0 {
			errors = append(errors, ValidationError{
				Field:   "readiness.delay",
				Value:   c.Readiness.Delay,
				Message: "must not be negative",
			})
		}
	case ReadinessPoll:
		if c.Readiness.Interval <= 0 {
			errors = append(errors, ValidationError{
				Field:   "readiness.interval",
				Value:   c.Readiness.Interval,
				Message: "must be positive",
			})
		}
		if c.Readiness.Timeout <= 0 {
			errors = append(errors, ValidationError{
				Field:   "readiness.timeout",
				Value:   c.Readiness.Timeout,
				Message: "must be positive",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "readiness.mode",
			Value:   c.Readiness.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidReadinessModes(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
