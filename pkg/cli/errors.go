package cli

import (
	"errors"
	"fmt"

	"mercator-hq/arbor/pkg/backend"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitNotFound    = 3
	ExitUnavailable = 4
	ExitSyntax      = 5
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// SyntaxError reports sources that parsed with syntax errors.
type SyntaxError struct {
	Files []string
}

func (e *SyntaxError) Error() string {
	if len(e.Files) == 1 {
		return fmt.Sprintf("%s has syntax errors", e.Files[0])
	}
	return fmt.Sprintf("%d files have syntax errors", len(e.Files))
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	var (
		cfgErr    *ConfigError
		syntaxErr *SyntaxError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr), errors.Is(err, backend.ErrInvalidConfiguration):
		return ExitConfig
	case errors.As(err, &syntaxErr):
		return ExitSyntax
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, backend.ErrUnknownImplementation):
		return ExitNotFound
	case errors.Is(err, backend.ErrNotAvailable),
		errors.Is(err, backend.ErrNoImplementationAvailable),
		errors.Is(err, backend.ErrConflict):
		return ExitUnavailable
	default:
		return ExitFailure
	}
}
