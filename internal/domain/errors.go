package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrValidation matches every ValidationError via errors.Is.
	ErrValidation = errors.New("invalid transaction")
	// ErrNegativeTaxRate is returned when the caller supplies a tax rate below zero.
	ErrNegativeTaxRate = errors.New("tax rate must not be negative")
	// ErrInvalidPeriod is returned when the accounting period is empty or inverted.
	ErrInvalidPeriod = errors.New("invalid accounting period")
)

// ValidationError describes a malformed transaction that reached the engine.
// The offending transaction is skipped, the rest of the batch is processed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports ErrValidation as the sentinel for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError aborts a calculation before any transaction is processed.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err with a message as a ConfigurationError.
func NewConfigurationError(err error, msg string) error {
	return &ConfigurationError{Err: errors.Wrap(err, msg)}
}
