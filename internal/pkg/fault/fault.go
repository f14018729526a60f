// Package fault holds the error taxonomy shared by the agent and its gateways.
// Callers wrap these sentinels with fmt.Errorf("...: %w") and classify with errors.Is.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientSource marks an unreachable indicator store, review queue or
	// exchange read. The tick is retried.
	ErrTransientSource = errors.New("transient source error")
	// ErrConfiguration marks a missing or invalid deployment parameter.
	ErrConfiguration = errors.New("configuration error")
	// ErrExecutionRejected marks an order the exchange refused.
	ErrExecutionRejected = errors.New("execution rejected")
	// ErrMalformedIndicator marks an indicator table that cannot be decoded.
	ErrMalformedIndicator = errors.New("malformed indicator table")
	// ErrIndicatorGap marks a replay tick inside the table range with no bucket.
	ErrIndicatorGap = errors.New("indicator bucket missing")
)

func Transient(format string, args ...any) error {
	return Wrap(ErrTransientSource, format, args...)
}

func Configuration(format string, args ...any) error {
	return Wrap(ErrConfiguration, format, args...)
}

func Rejected(format string, args ...any) error {
	return Wrap(ErrExecutionRejected, format, args...)
}

func Malformed(format string, args ...any) error {
	return Wrap(ErrMalformedIndicator, format, args...)
}

// Wrap annotates kind with a formatted message, keeping errors.Is(err, kind).
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// IsFatal reports whether err leaves the tick result meaningless.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrMalformedIndicator) ||
		errors.Is(err, ErrIndicatorGap)
}
