package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Log formats.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{LogFormatAuto, LogFormatText, LogFormatJSON}
	validOutputs    = []string{OutputTable, OutputJSON}
)

// Validate checks all configuration values and returns all errors found,
// so a user can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateLogging(cfg)...)
	errs = append(errs, validateTracker(&cfg.Tracker)...)
	errs = append(errs, validateOutput(&cfg.Output)...)
	errs = append(errs, validateWatch(&cfg.Watch)...)

	return errors.Join(errs...)
}

func validateLogging(cfg *Config) []error {
	var errs []error

	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level: must be one of %s, got %q",
			strings.Join(validLogLevels, ", "), cfg.LogLevel))
	}

	if !slices.Contains(validLogFormats, cfg.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format: must be one of %s, got %q",
			strings.Join(validLogFormats, ", "), cfg.LogFormat))
	}

	return errs
}

func validateTracker(t *TrackerConfig) []error {
	if strings.TrimSpace(t.ScopePrefix) == "" {
		return []error{errors.New("tracker.scope_prefix: must not be empty")}
	}

	return nil
}

func validateOutput(o *OutputConfig) []error {
	if !slices.Contains(validOutputs, o.Format) {
		return []error{fmt.Errorf("output.format: must be one of %s, got %q",
			strings.Join(validOutputs, ", "), o.Format)}
	}

	return nil
}

func validateWatch(w *WatchConfig) []error {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil {
		return []error{fmt.Errorf("watch.debounce: %w", err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("watch.debounce: must not be negative, got %s", w.Debounce)}
	}

	return nil
}

// SlogLevel maps a validated log_level to its slog level.
func SlogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DebounceDuration returns the parsed watch debounce. Validate guarantees it
// parses.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil {
		return 0
	}

	return d
}
