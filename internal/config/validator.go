package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "decompose.max_subtasks")
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

// ValidBackends returns the list of supported model backends
func ValidBackends() []string {
	return []string{"ollama", "openai"}
}

// Temperature bounds accepted by both backends.
const (
	minTemperature = 0.0
	maxTemperature = 2.0
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAI()...)
	errors = append(errors, c.validateDecompose()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateAI validates the AIConfig
func (c *Config) validateAI() []ValidationError {
	var errors []ValidationError

	backend := strings.ToLower(c.AI.Backend)
	if backend != "" && !slices.Contains(ValidBackends(), backend) {
		errors = append(errors, ValidationError{
			Field:   "ai.backend",
			Value:   c.AI.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if c.AI.RequestTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "ai.request_timeout_seconds",
			Value:   c.AI.RequestTimeoutSeconds,
			Message: "must be non-negative (0 disables the timeout)",
		})
	}

	if c.AI.Ollama.Host != "" {
		if err := validateURL(c.AI.Ollama.Host); err != "" {
			errors = append(errors, ValidationError{
				Field:   "ai.ollama.host",
				Value:   c.AI.Ollama.Host,
				Message: err,
			})
		}
	}

	if c.AI.OpenAI.BaseURL != "" {
		if err := validateURL(c.AI.OpenAI.BaseURL); err != "" {
			errors = append(errors, ValidationError{
				Field:   "ai.openai.base_url",
				Value:   c.AI.OpenAI.BaseURL,
				Message: err,
			})
		}
	}

	return errors
}

// validateURL returns a message describing why raw is not an http(s) URL, or "".
func validateURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("is not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "must use http or https scheme"
	}
	if u.Host == "" {
		return "must include a host"
	}
	return ""
}

// validateDecompose validates the DecomposeConfig
func (c *Config) validateDecompose() []ValidationError {
	var errors []ValidationError
	d := c.Decompose

	if d.MinSubtasks < 1 {
		errors = append(errors, ValidationError{
			Field:   "decompose.min_subtasks",
			Value:   d.MinSubtasks,
			Message: "must be at least 1",
		})
	}

	if d.MaxSubtasks < d.MinSubtasks {
		errors = append(errors, ValidationError{
			Field:   "decompose.max_subtasks",
			Value:   d.MaxSubtasks,
			Message: fmt.Sprintf("must be >= decompose.min_subtasks (%d)", d.MinSubtasks),
		})
	}

	if d.MaxSubtaskLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "decompose.max_subtask_length",
			Value:   d.MaxSubtaskLength,
			Message: "must be positive",
		})
	}

	if d.Temperature < minTemperature || d.Temperature > maxTemperature {
		errors = append(errors, ValidationError{
			Field:   "decompose.temperature",
			Value:   d.Temperature,
			Message: fmt.Sprintf("must be between %.1f and %.1f", minTemperature, maxTemperature),
		})
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Store.Path) == "" {
		errors = append(errors, ValidationError{
			Field:   "store.path",
			Value:   c.Store.Path,
			Message: "must not be empty (use \":memory:\" for an in-memory store)",
		})
	}

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError
	s := c.Server

	if s.Port < 0 || s.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Value:   s.Port,
			Message: "must be between 0 and 65535",
		})
	}

	timeouts := []struct {
		field string
		value int
	}{
		{"server.read_timeout_seconds", s.ReadTimeoutSeconds},
		{"server.write_timeout_seconds", s.WriteTimeoutSeconds},
		{"server.shutdown_timeout_seconds", s.ShutdownTimeoutSeconds},
	}
	for _, to := range timeouts {
		if to.value < 0 {
			errors = append(errors, ValidationError{
				Field:   to.field,
				Value:   to.value,
				Message: "must be non-negative",
			})
		}
	}

	// A write timeout shorter than the model timeout cuts off slow decompositions.
	if s.WriteTimeoutSeconds > 0 && c.AI.RequestTimeoutSeconds > 0 && s.WriteTimeoutSeconds <= c.AI.RequestTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "server.write_timeout_seconds",
			Value:   s.WriteTimeoutSeconds,
			Message: fmt.Sprintf("must exceed ai.request_timeout_seconds (%d)", c.AI.RequestTimeoutSeconds),
		})
	}

	for i, origin := range s.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("server.allowed_origins[%d]", i),
				Value:   origin,
				Message: "must not be empty",
			})
		}
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

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative (0 disables rotation)",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
