package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/noorall/fmtgate/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "timeouts.poll_interval_ms")
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

// Validate checks the Config for invalid values and returns all validation
// errors found. Out-of-range waiter timeouts are not errors; they are clamped
// by ClampTimeouts instead.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Command.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "command.path",
			Value:   c.Command.Path,
			Message: "formatting command path must not be empty",
		})
	}
	if c.Command.Subcommand == "" {
		errs = append(errs, ValidationError{
			Field:   "command.subcommand",
			Value:   c.Command.Subcommand,
			Message: "formatting subcommand must not be empty",
		})
	}
	if c.Command.TailLines < 0 {
		errs = append(errs, ValidationError{
			Field:   "command.tail_lines",
			Value:   c.Command.TailLines,
			Message: "must be zero or positive",
		})
	}

	if len(c.Discovery.Descriptors) == 0 {
		errs = append(errs, ValidationError{
			Field:   "discovery.descriptors",
			Value:   c.Discovery.Descriptors,
			Message: "at least one descriptor file name is required",
		})
	}
	if c.Discovery.MaxDepth < 1 {
		errs = append(errs, ValidationError{
			Field:   "discovery.max_depth",
			Value:   c.Discovery.MaxDepth,
			Message: "must be at least 1",
		})
	}

	if c.Timeouts.ProcessTimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "timeouts.process_timeout_seconds",
			Value:   c.Timeouts.ProcessTimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Timeouts.PollIntervalMs < 50 {
		errs = append(errs, ValidationError{
			Field:   "timeouts.poll_interval_ms",
			Value:   c.Timeouts.PollIntervalMs,
			Message: "must be at least 50",
		})
	}

	if c.Status.Dir == "" {
		errs = append(errs, ValidationError{
			Field:   "status.dir",
			Value:   c.Status.Dir,
			Message: "status directory must not be empty",
		})
	}
	if c.Status.LingerSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "status.linger_seconds",
			Value:   c.Status.LingerSeconds,
			Message: "must be zero or positive",
		})
	}

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}

// ClampTimeouts applies the documented [min,max] ranges to the waiter-side
// timeout values, overriding each effective value and logging a warning when
// the configured value falls outside its range.
func (c *Config) ClampTimeouts(logger *logging.Logger) {
	c.Timeouts.SessionBudgetSeconds = clamp(logger, "timeouts.session_budget_seconds",
		c.Timeouts.SessionBudgetSeconds, MinSessionBudgetSeconds, MaxSessionBudgetSeconds)
	c.Timeouts.WaitPollTimeoutSeconds = clamp(logger, "timeouts.wait_poll_timeout_seconds",
		c.Timeouts.WaitPollTimeoutSeconds, MinWaitPollSeconds, MaxWaitPollSeconds)
}

func clamp(logger *logging.Logger, field string, value, min, max int) int {
	clamped := value
	if clamped < min {
		clamped = min
	} else if clamped > max {
		clamped = max
	}
	if clamped != value && logger != nil {
		logger.Warn("configured timeout outside supported range, clamped",
			"field", field,
			"configured", value,
			"effective", clamped,
			"min", min,
			"max", max,
		)
	}
	return clamped
}
