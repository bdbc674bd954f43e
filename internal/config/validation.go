package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ErrInvalidConfig is matched by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateInput(&c.Input)...)
	errs = append(errs, validateTables(&c.Tables)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if c.Features.ReverseLookup && c.Input.ReverseScheme == "" {
		errs = append(errs, ValidationError{
			Field:   "input.reverse_scheme",
			Message: "reverse lookup is enabled but no reverse scheme is set",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateInput(in *InputConfig) ValidationErrors {
	var errs ValidationErrors

	if in.Scheme == "" {
		errs = append(errs, *RequiredFieldError("input.scheme"))
	}
	for field, scheme := range map[string]string{
		"input.scheme":           in.Scheme,
		"input.reverse_scheme":   in.ReverseScheme,
		"input.homophone_scheme": in.HomophoneScheme,
		"input.phrase_scheme":    in.PhraseScheme,
	} {
		if strings.ContainsAny(scheme, `/\`) || strings.HasPrefix(scheme, ".") {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid scheme name %q", scheme),
			})
		}
	}

	if in.MaxCharLength < 1 || in.MaxCharLength > 16 {
		errs = append(errs, *RangeError("input.max_char_length", 1, 16))
	}
	if in.CandidatesPerPage < 1 || in.CandidatesPerPage > 10 {
		errs = append(errs, *RangeError("input.candidates_per_page", 1, 10))
	}
	if n := utf8.RuneCountInString(in.SelectionKeys); n > 0 && n < in.CandidatesPerPage {
		errs = append(errs, ValidationError{
			Field:   "input.selection_keys",
			Message: fmt.Sprintf("%d keys cannot label %d candidates per page", n, in.CandidatesPerPage),
		})
	}
	if utf8.RuneCountInString(in.MenuKey) > 1 {
		errs = append(errs, ValidationError{
			Field:   "input.menu_key",
			Message: fmt.Sprintf("menu key must be a single character, got %q", in.MenuKey),
		})
	}
	if in.LoadTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "input.load_timeout_ms",
			Message: "load timeout cannot be negative",
		})
	}
	if in.MessageDurationMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "input.message_duration_ms",
			Message: "message duration cannot be negative",
		})
	}
	return errs
}

func validateTables(t *TablesConfig) ValidationErrors {
	var errs ValidationErrors
	if t.Dir == "" {
		errs = append(errs, *RequiredFieldError("tables.dir"))
	}
	if t.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "tables.debounce_ms",
			Message: "debounce cannot be negative",
		})
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if s.RecordCommits && s.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "path is required when record_commits is enabled",
		})
	}
	if s.HistoryDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.history_days",
			Message: "history days cannot be negative",
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Listen); err != nil {
		return ValidationErrors{{
			Field:   "metrics.listen",
			Message: fmt.Sprintf("invalid listen address %q: %v", m.Listen, err),
		}}
	}
	return nil
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
