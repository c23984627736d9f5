package costbasis

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is wrapped by validation errors about an unsupported side or
// corporate action kind.
var ErrUnknownKind = errors.New("unknown kind")

// ErrUnknownKey is returned when a key holds no lot.
var ErrUnknownKey = errors.New("unknown key")

// ValidationError reports bad input to a single call. The ledger is left
// untouched and the call can be retried once the input is fixed.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientLotError reports a sell larger than the open quantity of its key.
// No lot is modified when it is returned.
type InsufficientLotError struct {
	Key       Key
	Requested Quantity
	Available Quantity
	Shortfall Quantity
}

func (e *InsufficientLotError) Error() string {
	return fmt.Sprintf("cannot sell %s %s for %s: only %s open, short by %s",
		e.Requested, e.Key.Instrument, e.Key.Holder, e.Available, e.Shortfall)
}

// ConfigurationError reports a missing or invalid fee or settlement setting.
// It is returned by constructors only.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}
