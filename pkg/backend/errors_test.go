package backend

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrors_Is(t *testing.T) {
	parseCause := errors.New("unexpected token")

	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{
			name:     "not available",
			err:      &NotAvailableError{Backend: "gotoml", Reason: "disabled"},
			sentinel: ErrNotAvailable,
			contains: "disabled",
		},
		{
			name:     "conflict",
			err:      &ConflictError{Backend: "a", ConflictingWith: []string{"b", "c"}},
			sentinel: ErrConflict,
			contains: "b, c",
		},
		{
			name:     "unknown",
			err:      &UnknownImplementationError{Backend: "zzz", Known: []string{"a"}},
			sentinel: ErrUnknownImplementation,
			contains: "zzz",
		},
		{
			name: "exhausted",
			err: &NoImplementationAvailableError{Attempts: []Attempt{
				{Backend: "a", Reason: "unavailable"},
				{Backend: "b", Reason: "conflict"},
			}},
			sentinel: ErrNoImplementationAvailable,
			contains: "a (unavailable)",
		},
		{
			name:     "invalid configuration",
			err:      &InvalidConfigurationError{Resource: "toml", Key: "native", Reason: "bad producer"},
			sentinel: ErrInvalidConfiguration,
			contains: "bad producer",
		},
		{
			name:     "not supported",
			err:      &NotSupportedError{Backend: "burntsushi", Capability: "sibling navigation"},
			sentinel: ErrNotSupportedByBackend,
			contains: "sibling navigation",
		},
		{
			name:     "not found",
			err:      &NotFoundError{Resource: "cobol"},
			sentinel: ErrNotFound,
			contains: "cobol",
		},
		{
			name:     "parse",
			err:      &ParseError{Backend: "hcl", Resource: "hcl", Err: parseCause},
			sentinel: ErrParse,
			contains: "unexpected token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want substring %q", tt.err.Error(), tt.contains)
			}
		})
	}

	if !errors.Is(&ParseError{Err: parseCause}, parseCause) {
		t.Error("ParseError should unwrap to its cause")
	}
	if errors.Is(&ConflictError{}, ErrNotAvailable) {
		t.Error("ConflictError must not match ErrNotAvailable")
	}
}

func TestNoImplementationAvailableError_Candidates(t *testing.T) {
	err := &NoImplementationAvailableError{Attempts: []Attempt{{Backend: "x"}, {Backend: "y"}}}
	got := err.Candidates()
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("Candidates() = %v", got)
	}
	if !strings.Contains((&NoImplementationAvailableError{}).Error(), "no candidates") {
		t.Error("empty attempts should mention no candidates")
	}
}
