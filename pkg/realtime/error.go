package realtime

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey reports a session attempted without an engine credential.
// This is fatal to call setup; there is no retry.
var ErrMissingAPIKey = errors.New("realtime: API key is required")

// Error is an engine-side error, either from the connection handshake or an
// error event on the stream.
type Error struct {
	// Type is the error type (e.g., "invalid_request_error").
	Type string `json:"type,omitempty"`

	// Code is the error code (e.g., "response_cancel_not_active").
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message,omitempty"`

	// EventID is the client event that caused the error, if any.
	EventID string `json:"event_id,omitempty"`

	// HTTPStatus is the handshake status code, if applicable.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("realtime: %s: %s", e.Code, e.Message)
	}
	if e.Type != "" {
		return fmt.Sprintf("realtime: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("realtime: %s", e.Message)
}

// IsBenignCancel reports whether err is the engine telling us a cancelled
// response had already finished. Treated as normal during barge-in.
func IsBenignCancel(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == "response_cancel_not_active"
}
