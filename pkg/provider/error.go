package provider

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Error is returned when a provider call fails: the backend answered with a
// non-2xx status, the transport failed, the response was not JSON, or no model
// could be resolved.
type Error struct {
	// Provider is the configured provider name.
	Provider string

	// StatusCode is the backend HTTP status, 0 when no response was received.
	StatusCode int

	// Message is the backend-supplied message for HTTP errors, otherwise the
	// full error description.
	Message string

	// Body is the raw backend response body for HTTP errors.
	Body []byte

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("HTTP %d error from provider: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func transportError(provider string, err error) *Error {
	return &Error{
		Provider: provider,
		Message:  fmt.Sprintf("Transport error contacting provider: %v", err),
		Err:      err,
	}
}

func statusError(provider string, status int, body []byte) *Error {
	return &Error{
		Provider:   provider,
		StatusCode: status,
		Message:    backendMessage(status, body),
		Body:       body,
	}
}

// backendMessage pulls the human readable message out of an error body.
// OpenAI-compatible servers answer {"error":{"message":...}}, native chat
// servers answer {"error":"..."}; anything else is reported verbatim.
func backendMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error.message"); msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
		if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}
