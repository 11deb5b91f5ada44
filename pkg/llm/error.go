// Package llm provides the internal representations of LLM inference API messages
// and responses shared by the provider clients, the dispatcher and the HTTP bridge.
package llm

import "fmt"

// ErrorResponse represents an error returned to bridge callers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationError is returned when a request is malformed, names an unknown
// provider or asks for a capability the provider does not have.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
