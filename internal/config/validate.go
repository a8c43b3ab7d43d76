package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Validation errors.
var (
	ErrUnknownKey         = errors.New("unknown configuration key")
	ErrInvalidLogLevel    = errors.New("log_level must be debug, info, warn, or error")
	ErrRelativePath       = errors.New("path must be absolute")
	ErrInvalidEnvEntry    = errors.New("environment entry must be KEY=VALUE")
	ErrInvalidDuration    = errors.New("duration must be positive, e.g. \"5s\"")
	ErrInvalidHistorySize = errors.New("history_size out of range")
	ErrInvalidBaseURL     = errors.New("base_url must be an http or https URL")
	ErrInvalidAPIPath     = errors.New("endpoint path must start with /")
)

// MaxHistorySize bounds worker.history_size.
const MaxHistorySize = 100000

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationError wraps a validation error with context.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks every set value and returns the first problem found.
// A nil config is valid.
func (c *GlobalConfig) Validate() error {
	if c == nil {
		return nil
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		return &ValidationError{
			Field:   "log_level",
			Value:   c.LogLevel,
			Message: "must be debug, info, warn, or error",
			Err:     ErrInvalidLogLevel,
		}
	}

	if err := ValidatePath("worker.path", c.Worker.Path); err != nil {
		return err
	}
	if err := ValidatePath("worker.workdir", c.Worker.WorkDir); err != nil {
		return err
	}
	if c.Worker.UnbufferedEnv != "" {
		if err := ValidateEnvEntry("worker.unbuffered_env", c.Worker.UnbufferedEnv); err != nil {
			return err
		}
	}
	for i, entry := range c.Worker.Env {
		if err := ValidateEnvEntry(fmt.Sprintf("worker.env[%d]", i), entry); err != nil {
			return err
		}
	}
	if err := ValidateDuration("worker.stop_timeout", c.Worker.StopTimeout); err != nil {
		return err
	}
	if c.Worker.HistorySize < 0 || c.Worker.HistorySize > MaxHistorySize {
		return &ValidationError{
			Field:   "worker.history_size",
			Value:   fmt.Sprintf("%d", c.Worker.HistorySize),
			Message: fmt.Sprintf("must be between 0 and %d", MaxHistorySize),
			Err:     ErrInvalidHistorySize,
		}
	}

	if c.API.BaseURL != "" {
		if err := ValidateBaseURL(c.API.BaseURL); err != nil {
			return err
		}
	}
	if err := validateAPIPath("api.license_path", c.API.LicensePath); err != nil {
		return err
	}
	if err := validateAPIPath("api.updates_path", c.API.UpdatesPath); err != nil {
		return err
	}
	return ValidateDuration("api.timeout", c.API.Timeout)
}

// ValidatePath checks that a configured path is absolute after ~ expansion.
// An empty path is valid and means the default.
func ValidatePath(field, path string) error {
	if path == "" {
		return nil
	}
	expanded, err := expandHome(path)
	if err != nil {
		return &ValidationError{Field: field, Value: path, Message: err.Error(), Err: err}
	}
	if !filepath.IsAbs(expanded) {
		return &ValidationError{
			Field:   field,
			Value:   path,
			Message: "must be absolute or start with ~/",
			Err:     ErrRelativePath,
		}
	}
	return nil
}

// ValidateEnvEntry checks a KEY=VALUE environment entry.
func ValidateEnvEntry(field, entry string) error {
	key, _, ok := strings.Cut(entry, "=")
	if !ok || strings.TrimSpace(key) == "" || strings.ContainsAny(key, " \t") {
		return &ValidationError{
			Field:   field,
			Value:   entry,
			Message: "must be KEY=VALUE",
			Err:     ErrInvalidEnvEntry,
		}
	}
	return nil
}

// ValidateDuration checks a duration string. Empty means the default.
func ValidateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be a positive duration like \"5s\"",
			Err:     ErrInvalidDuration,
		}
	}
	return nil
}

// ValidateBaseURL checks the service base URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{
			Field:   "api.base_url",
			Value:   raw,
			Message: "must be an http or https URL",
			Err:     ErrInvalidBaseURL,
		}
	}
	return nil
}

func validateAPIPath(field, path string) error {
	if path == "" || strings.HasPrefix(path, "/") {
		return nil
	}
	return &ValidationError{
		Field:   field,
		Value:   path,
		Message: "must start with /",
		Err:     ErrInvalidAPIPath,
	}
}
