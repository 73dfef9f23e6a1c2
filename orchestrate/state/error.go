package state

import (
	"errors"
	"fmt"
)

// Sentinel errors for schema declarations and reducer application.
var (
	ErrEmptyField    = errors.New("field name is empty")
	ErrUnknownPolicy = errors.New("unknown merge policy")
	ErrNotSequence   = errors.New("append value is not a sequence")
)

// ConfigurationError reports a field redeclared with a conflicting policy.
type ConfigurationError struct {
	Field     string
	Declared  Policy
	Requested Policy
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("field %s: declared as %s, redeclared as %s", e.Field, e.Declared, e.Requested)
}

// UpdateError reports a partial update that could not be merged.
type UpdateError struct {
	Field string
	Err   error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("apply field %s: %v", e.Field, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}
