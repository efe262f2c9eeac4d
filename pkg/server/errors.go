package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/arbor/pkg/backend"
)

// Error codes returned in error bodies.
const (
	codeBadRequest    = "bad_request"
	codeNotFound      = "not_found"
	codeUnknown       = "unknown_backend"
	codeInvalidConfig = "invalid_configuration"
	codeConflict      = "conflict"
	codeNotAvailable  = "not_available"
	codeExhausted     = "no_backend_available"
	codeNotSupported  = "not_supported"
	codeParse         = "parse_failed"
	codeTooLarge      = "source_too_large"
	codeInternal      = "internal_error"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Attempts []backend.Attempt `json:"attempts,omitempty"`
}

// statusFor maps an engine error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, backend.ErrUnknownImplementation):
		return http.StatusBadRequest, codeUnknown
	case errors.Is(err, backend.ErrInvalidConfiguration):
		return http.StatusBadRequest, codeInvalidConfig
	case errors.Is(err, backend.ErrConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, backend.ErrNoImplementationAvailable):
		return http.StatusServiceUnavailable, codeExhausted
	case errors.Is(err, backend.ErrNotAvailable):
		return http.StatusServiceUnavailable, codeNotAvailable
	case errors.Is(err, backend.ErrNotSupportedByBackend):
		return http.StatusNotImplemented, codeNotSupported
	case errors.Is(err, backend.ErrParse):
		return http.StatusUnprocessableEntity, codeParse
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	body := ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error()}}

	var exhausted *backend.NoImplementationAvailableError
	if errors.As(err, &exhausted) {
		body.Error.Attempts = exhausted.Attempts
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
