package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Common backend errors that can be checked with errors.Is().
var (
	// ErrNotAvailable is returned when a backend exists but its preconditions are unmet.
	ErrNotAvailable = errors.New("backend not available")

	// ErrConflict is returned when a backend is blocked by one already used in this process.
	ErrConflict = errors.New("backend conflict")

	// ErrUnknownImplementation is returned when a backend id is not registered.
	ErrUnknownImplementation = errors.New("unknown backend")

	// ErrNoImplementationAvailable is returned when auto selection exhausted all candidates.
	ErrNoImplementationAvailable = errors.New("no backend available")

	// ErrInvalidConfiguration is returned when registration input is malformed.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNotSupportedByBackend is returned when an optional capability is not
	// implemented by the active backend.
	ErrNotSupportedByBackend = errors.New("not supported by backend")

	// ErrNotFound is returned when a resource was never registered.
	ErrNotFound = errors.New("resource not found")

	// ErrParse is returned when a producer fails while parsing.
	ErrParse = errors.New("parse failed")
)

// NotAvailableError is returned when a known backend cannot run in the
// current environment.
type NotAvailableError struct {
	// Backend is the requested backend id.
	Backend string

	// Reason describes the unmet precondition.
	Reason string
}

// Error implements the error interface.
func (e *NotAvailableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("backend %q not available", e.Backend)
	}
	return fmt.Sprintf("backend %q not available: %s", e.Backend, e.Reason)
}

// Is implements error matching for errors.Is().
func (e *NotAvailableError) Is(target error) bool {
	return target == ErrNotAvailable
}

// ConflictError is returned when the requested backend is blocked by a
// backend that has already been used in this process.
type ConflictError struct {
	// Backend is the requested backend id.
	Backend string

	// ConflictingWith contains the already used backend ids causing the block.
	ConflictingWith []string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("backend %q conflicts with already used backend(s): %s",
		e.Backend, strings.Join(e.ConflictingWith, ", "))
}

// Is implements error matching for errors.Is().
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// UnknownImplementationError is returned when a backend id is not registered.
type UnknownImplementationError struct {
	// Backend is the requested backend id.
	Backend string

	// Known contains the registered backend ids.
	Known []string
}

// Error implements the error interface.
func (e *UnknownImplementationError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown backend %q", e.Backend)
	}
	return fmt.Sprintf("unknown backend %q (registered backends: %s)",
		e.Backend, strings.Join(e.Known, ", "))
}

// Is implements error matching for errors.Is().
func (e *UnknownImplementationError) Is(target error) bool {
	return target == ErrUnknownImplementation
}

// Attempt records why one auto selection candidate was skipped.
type Attempt struct {
	Backend string `json:"backend"`
	Reason  string `json:"reason"`
}

// NoImplementationAvailableError is returned when auto selection found no
// backend that is both available and unconflicted.
type NoImplementationAvailableError struct {
	// Attempts lists every candidate in priority order with its skip reason.
	Attempts []Attempt
}

// Error implements the error interface.
func (e *NoImplementationAvailableError) Error() string {
	if len(e.Attempts) == 0 {
		return "no backend available: no candidates registered"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s)", a.Backend, a.Reason))
	}
	return fmt.Sprintf("no backend available (tried: %s)", strings.Join(parts, ", "))
}

// Is implements error matching for errors.Is().
func (e *NoImplementationAvailableError) Is(target error) bool {
	return target == ErrNoImplementationAvailable
}

// Candidates returns the ids that were tried.
func (e *NoImplementationAvailableError) Candidates() []string {
	ids := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		ids = append(ids, a.Backend)
	}
	return ids
}

// InvalidConfigurationError is returned when a registration is malformed.
type InvalidConfigurationError struct {
	Resource string
	Key      string
	Reason   string
}

// Error implements the error interface.
func (e *InvalidConfigurationError) Error() string {
	switch {
	case e.Resource == "" && e.Key == "":
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	case e.Key == "":
		return fmt.Sprintf("invalid configuration for resource %q: %s", e.Resource, e.Reason)
	default:
		return fmt.Sprintf("invalid configuration for resource %q key %q: %s", e.Resource, e.Key, e.Reason)
	}
}

// Is implements error matching for errors.Is().
func (e *InvalidConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// NotSupportedError is returned when the active backend does not implement
// an optional capability. It is distinct from a navigation that simply
// finds nothing.
type NotSupportedError struct {
	Backend    string
	Capability string
}

// Error implements the error interface.
func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("backend %q does not support %s", e.Backend, e.Capability)
}

// Is implements error matching for errors.Is().
func (e *NotSupportedError) Is(target error) bool {
	return target == ErrNotSupportedByBackend
}

// NotFoundError is returned when a resource has never been registered.
type NotFoundError struct {
	Resource string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %q not registered", e.Resource)
}

// Is implements error matching for errors.Is().
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ParseError is returned when a producer fails mid-call.
type ParseError struct {
	Backend  string
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("backend %q failed to parse %q: %v", e.Backend, e.Resource, e.Err)
}

// Is implements error matching for errors.Is().
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Unwrap returns the producer error for error chain traversal.
func (e *ParseError) Unwrap() error {
	return e.Err
}
