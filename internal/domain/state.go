package domain

import "time"

// PinState is the apply/revert axis of a pin's lifecycle. Blinking is tracked
// separately because it can coexist with any of these.
type PinState int

const (
	StateIdle PinState = iota
	StatePendingScheduled
	StateActive
	StateActiveTimed
)

func (s PinState) String() string {
	switch s {
	case StatePendingScheduled:
		return "pending"
	case StateActive:
		return "active"
	case StateActiveTimed:
		return "active_timed"
	default:
		return "idle"
	}
}

// MarshalText renders the state name in JSON.
func (s PinState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *PinState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StateIdle
	case "pending":
		*s = StatePendingScheduled
	case "active":
		*s = StateActive
	case "active_timed":
		*s = StateActiveTimed
	default:
		return NewDomainError("PinState.UnmarshalText", ErrInvalidInput, string(b))
	}
	return nil
}

// PinStatus is a point-in-time view of one pin's engine state.
type PinStatus struct {
	GPIO          int        `json:"gpio"`
	State         PinState   `json:"state"`
	Mode          string     `json:"mode,omitempty"`
	PendingMode   string     `json:"pending_mode,omitempty"`
	OperationID   string     `json:"operation_id,omitempty"`
	ApplyAt       *time.Time `json:"apply_at,omitempty"`
	RevertAt      *time.Time `json:"revert_at,omitempty"`
	Blinking      bool       `json:"blinking"`
	BlinkInterval int64      `json:"blink_interval_ms,omitempty"`
}
