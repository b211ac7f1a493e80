package domain

import (
	"fmt"
	"math"
	"time"
)

// MaxMillis is the largest millisecond count a time.Duration can hold.
const MaxMillis = int64(math.MaxInt64 / int64(time.Millisecond))

// Millis converts a millisecond count to a Duration. Negative counts and
// counts above MaxMillis fail with ErrInvalidInput naming field.
func Millis(field string, ms int64) (time.Duration, error) {
	if ms < 0 || ms > MaxMillis {
		return 0, NewDomainError("Millis", ErrInvalidInput, fmt.Sprintf("%s %d out of range", field, ms))
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// OperationRequest is an operator's intent for one pin. A zero Delay applies
// immediately; a positive Duration reverts the pin that long after the mode
// is applied.
type OperationRequest struct {
	Pin      int
	Mode     PinMode
	Delay    time.Duration
	Duration time.Duration
}

// NewOperationRequest validates raw request fields against r.
func NewOperationRequest(r PinRange, pin int, mode string, delay, duration time.Duration) (OperationRequest, error) {
	if err := r.Validate(pin); err != nil {
		return OperationRequest{}, err
	}
	m, err := ParseMode(mode)
	if err != nil {
		return OperationRequest{}, err
	}
	req := OperationRequest{Pin: pin, Mode: m, Delay: delay, Duration: duration}
	if err := req.Validate(r); err != nil {
		return OperationRequest{}, err
	}
	return req, nil
}

// Validate re-checks a request. Timers call it again at fire time.
func (o OperationRequest) Validate(r PinRange) error {
	if err := r.Validate(o.Pin); err != nil {
		return err
	}
	if o.Mode.Kind != ModeDigital && o.Mode.Kind != ModePWM {
		return NewDomainError("OperationRequest.Validate", ErrInvalidMode, fmt.Sprintf("kind %d", o.Mode.Kind))
	}
	if o.Mode.Kind == ModeDigital && o.Mode.Level > LevelHigh {
		return NewDomainError("OperationRequest.Validate", ErrInvalidMode, fmt.Sprintf("level %d", o.Mode.Level))
	}
	if o.Delay < 0 {
		return NewDomainError("OperationRequest.Validate", ErrInvalidInput, "negative delay")
	}
	if o.Duration < 0 {
		return NewDomainError("OperationRequest.Validate", ErrInvalidInput, "negative duration")
	}
	return nil
}

// BatchEntry is one element of a batch: an immediate apply with no timers.
type BatchEntry struct {
	Pin  int    `json:"gpio"`
	Mode string `json:"state"`
}

// BatchFailure records why one batch entry was not applied.
type BatchFailure struct {
	Index int
	Pin   int
	Err   error
}

func (f BatchFailure) Error() string {
	return fmt.Sprintf("entry %d (gpio %d): %v", f.Index, f.Pin, f.Err)
}

func (f BatchFailure) Unwrap() error { return f.Err }
