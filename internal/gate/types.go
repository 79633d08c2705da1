package gate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSessionActive is returned when an operation needs the machine idle.
var ErrSessionActive = errors.New("a session is already active")

// State is the position of the current session.
type State int

const (
	Idle State = iota
	RequestingResource
	Capturing
	Analyzing
	Succeeded
	Failed
	PermissionDenied
	Locked
	ResourceUnavailable
)

var stateNames = map[State]string{
	Idle:                "idle",
	RequestingResource:  "requesting_resource",
	Capturing:           "capturing",
	Analyzing:           "analyzing",
	Succeeded:           "succeeded",
	Failed:              "failed",
	PermissionDenied:    "permission_denied",
	Locked:              "locked",
	ResourceUnavailable: "resource_unavailable",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	switch s {
	case Succeeded, Failed, PermissionDenied, Locked, ResourceUnavailable:
		return true
	}
	return false
}

// Retryable reports whether a UI should offer to start again from s.
// Locked shows a countdown instead and ResourceUnavailable needs new hardware.
func Retryable(s State) bool {
	return s == Failed || s == PermissionDenied
}

// Mode selects what a session does with its captures.
type Mode int

const (
	Enrollment Mode = iota + 1
	Verification
)

func (m Mode) String() string {
	switch m {
	case Enrollment:
		return "enroll"
	case Verification:
		return "verify"
	}
	return ""
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts "enroll", "enrollment", "verify" and "verification".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enroll", "enrollment":
		return Enrollment, nil
	case "verify", "verification":
		return Verification, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// EventKind distinguishes state transitions from progress ticks.
type EventKind string

const (
	EventState    EventKind = "state"
	EventProgress EventKind = "progress"
)

// Event describes one observable change of the machine.
type Event struct {
	SessionID        string    `json:"session_id,omitempty"`
	Mode             Mode      `json:"mode,omitempty"`
	Kind             EventKind `json:"kind"`
	State            State     `json:"state"`
	Reason           string    `json:"reason,omitempty"`
	Guidance         string    `json:"guidance,omitempty"`
	Progress         int       `json:"progress"`
	Round            int       `json:"round,omitempty"`
	Rounds           int       `json:"rounds,omitempty"`
	RemainingMinutes int       `json:"remaining_minutes,omitempty"`
	At               time.Time `json:"at"`
}

// User guidance attached to terminal events.
const (
	guidanceInUse       = "The camera is in use by another application. Close it and try again."
	guidanceTimeout     = "The camera did not start in time. Check that it is connected and try again."
	guidancePermission  = "Camera access was denied. Allow camera access in your system settings and try again."
	guidanceUnavailable = "No camera is available on this device."
	guidanceNotEnrolled = "Enroll your face before verifying."
)

// ReasonNotEnrolled is the failure reason of a verification without a template.
const ReasonNotEnrolled = "not enrolled"

// lockedGuidance omits the countdown when the remaining time is unknown.
func lockedGuidance(minutes int) string {
	switch {
	case minutes <= 0:
		return "Too many failed attempts. Try again later."
	case minutes == 1:
		return "Too many failed attempts. Try again in 1 minute."
	}
	return fmt.Sprintf("Too many failed attempts. Try again in %d minutes.", minutes)
}
