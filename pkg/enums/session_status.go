package enums

import "fmt"

// SessionStatus tracks the lifecycle of a point-of-sale checkout session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusHeld      SessionStatus = "held"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusVoid      SessionStatus = "void"
	SessionStatusExpired   SessionStatus = "expired"
)

var validSessionStatuses = []SessionStatus{
	SessionStatusActive,
	SessionStatusHeld,
	SessionStatusCompleted,
	SessionStatusVoid,
	SessionStatusExpired,
}

// String implements fmt.Stringer.
func (s SessionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SessionStatus.
func (s SessionStatus) IsValid() bool {
	for _, candidate := range validSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether the session can still return to active work.
func (s SessionStatus) IsOpen() bool {
	return s == SessionStatusActive || s == SessionStatusHeld
}

// IsTerminal reports whether the session can never change again.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusVoid || s == SessionStatusExpired
}

// ParseSessionStatus converts raw input into a SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, error) {
	for _, candidate := range validSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session status %q", value)
}
