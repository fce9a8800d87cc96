package model

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is matched by every ConfigurationError via errors.Is.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ConfigurationError reports a pipeline or decision vector that cannot be
// simulated. It is raised before any simulation run starts.
type ConfigurationError struct {
	Entity string // entity ID, or "" for pipeline-wide problems
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Entity != "" && e.Field != "":
		return fmt.Sprintf("%v: %s.%s: %s", ErrInvalidConfiguration, e.Entity, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%v: %s: %s", ErrInvalidConfiguration, e.Field, e.Reason)
	default:
		return fmt.Sprintf("%v: %s", ErrInvalidConfiguration, e.Reason)
	}
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

func configErr(entity, field, format string, args ...any) error {
	return &ConfigurationError{Entity: entity, Field: field, Reason: fmt.Sprintf(format, args...)}
}
