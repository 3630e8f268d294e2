package engine

import (
	"encoding/json"
	"fmt"
)

// SessionStatus is the lifecycle state of a render session.
type SessionStatus string

const (
	// SessionStatusPending indicates nothing has been loaded yet.
	SessionStatusPending SessionStatus = "pending"

	// SessionStatusLoaded indicates a document is loaded and can be rendered.
	SessionStatusLoaded SessionStatus = "loaded"

	// SessionStatusFailed indicates the last load failed. Loading again
	// recovers.
	SessionStatusFailed SessionStatus = "failed"

	// SessionStatusClosed indicates the session was closed.
	SessionStatusClosed SessionStatus = "closed"
)

// IsTerminal returns true if no further operations are accepted.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusClosed
}

// CanRender returns true if a document is available for rendering.
func (s SessionStatus) CanRender() bool {
	return s == SessionStatusLoaded
}

// Validate checks if the session status is valid.
func (s SessionStatus) Validate() error {
	switch s {
	case SessionStatusPending, SessionStatusLoaded, SessionStatusFailed, SessionStatusClosed:
		return nil
	default:
		return fmt.Errorf("invalid session status: %s", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s SessionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler and rejects unknown states.
func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := SessionStatus(str)
	if err := status.Validate(); err != nil {
		return err
	}
	*s = status
	return nil
}
