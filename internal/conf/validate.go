// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"

	"github.com/tphakala/mixcore/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ErrorCategory lets the errors package classify validation failures
func (ve ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryValidation
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateAudioSettings(&settings.Audio); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLogSettings(&settings.Logging); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMetricsSettings(&settings.Metrics); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry is enabled but no DSN is set")
	}

	if settings.Samples.CacheSize < 0 {
		ve.Errors = append(ve.Errors, "samples cache size must be non-negative")
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component("configuration").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func validateAudioSettings(settings *AudioSettings) error {
	var errs []string

	settings.Backend = strings.ToLower(strings.TrimSpace(settings.Backend))
	switch settings.Backend {
	case BackendMalgo, BackendNull:
	case BackendWAV:
		if settings.WAVPath == "" {
			errs = append(errs, "wav backend requires audio.wavpath")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported audio backend %q", settings.Backend))
	}

	if settings.SampleRate < 8000 || settings.SampleRate > 192000 {
		errs = append(errs, fmt.Sprintf("sample rate %d out of range 8000-192000", settings.SampleRate))
	}
	if settings.PeriodFrames <= 0 {
		errs = append(errs, "period frames must be positive")
	}
	if settings.BufferFrames < settings.PeriodFrames {
		errs = append(errs, fmt.Sprintf("buffer frames %d smaller than period frames %d", settings.BufferFrames, settings.PeriodFrames))
	}
	if settings.Realtime && (settings.Priority < 1 || settings.Priority > 99) {
		errs = append(errs, fmt.Sprintf("realtime priority %d out of range 1-99", settings.Priority))
	}

	if len(errs) > 0 {
		return fmt.Errorf("audio settings: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogSettings(settings *LogSettings) error {
	switch settings.Level {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level %q", settings.Level)
	}
}

func validateMetricsSettings(settings *MetricsSettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("invalid metrics listen address %q: %w", settings.Listen, err)
	}
	return nil
}
