package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is a digital output level.
type Level uint8

const (
	LevelLow  Level = 0
	LevelHigh Level = 1
)

// String returns "HIGH" or "LOW", the labels used on the wire.
func (l Level) String() string {
	if l == LevelHigh {
		return "HIGH"
	}
	return "LOW"
}

// Toggle returns the opposite level.
func (l Level) Toggle() Level {
	if l == LevelHigh {
		return LevelLow
	}
	return LevelHigh
}

// ModeKind discriminates PinMode.
type ModeKind uint8

const (
	ModeDigital ModeKind = iota
	ModePWM
)

// PWM output parameters shared by every driver: 5 kHz carrier, 8-bit duty.
const (
	PWMFrequencyHz = 5000
	PWMResolution  = 8
	MaxDuty        = 1<<PWMResolution - 1
)

const pwmPrefix = "pwm"

// PinMode is the desired electrical behavior of a pin: a fixed digital level
// or a PWM duty cycle. The zero value is Digital(LOW).
type PinMode struct {
	Kind  ModeKind
	Level Level // valid when Kind == ModeDigital
	Duty  uint8 // valid when Kind == ModePWM
}

// Digital returns a digital mode at level l.
func Digital(l Level) PinMode { return PinMode{Kind: ModeDigital, Level: l} }

// PWM returns a PWM mode with the given duty.
func PWM(duty uint8) PinMode { return PinMode{Kind: ModePWM, Duty: duty} }

// ParseMode decodes the canonical mode string. Accepted forms are "high",
// "low" and "pwm<N>" where N is a decimal in 0..255 without sign or leading
// zeros, so that ParseMode(s).String() == s for every accepted s.
func ParseMode(s string) (PinMode, error) {
	switch s {
	case "high":
		return Digital(LevelHigh), nil
	case "low":
		return Digital(LevelLow), nil
	}

	digits, ok := strings.CutPrefix(s, pwmPrefix)
	if !ok || !canonicalDecimal(digits) {
		return PinMode{}, NewDomainError("ParseMode", ErrInvalidMode, strconv.Quote(s))
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n > MaxDuty {
		return PinMode{}, NewDomainError("ParseMode", ErrInvalidMode, strconv.Quote(s))
	}
	return PWM(uint8(n)), nil
}

func canonicalDecimal(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String returns the canonical encoding: "high", "low" or "pwm<N>". The same
// string is sent on the wire and written to the state store.
func (m PinMode) String() string {
	if m.Kind == ModePWM {
		return pwmPrefix + strconv.Itoa(int(m.Duty))
	}
	if m.Level == LevelHigh {
		return "high"
	}
	return "low"
}

// Label returns the response label: "HIGH", "LOW" or "PWM".
func (m PinMode) Label() string {
	if m.Kind == ModePWM {
		return "PWM"
	}
	return m.Level.String()
}

// IsPWM reports whether m drives a duty cycle.
func (m PinMode) IsPWM() bool { return m.Kind == ModePWM }

// Revert returns the mode a timed operation falls back to when its duration
// elapses. HIGH and any PWM duty fall back to LOW; LOW falls back to HIGH.
// PWM never restores a previous duty.
func (m PinMode) Revert() PinMode {
	if m.Kind == ModeDigital && m.Level == LevelLow {
		return Digital(LevelHigh)
	}
	return Digital(LevelLow)
}

// PinRange is the inclusive range of addressable GPIO numbers.
type PinRange struct {
	Min int
	Max int
}

// DefaultPinRange matches the ESP32 GPIO matrix, GPIO 0 through 33.
var DefaultPinRange = PinRange{Min: 0, Max: 33}

// Contains reports whether pin is addressable.
func (r PinRange) Contains(pin int) bool {
	return pin >= r.Min && pin <= r.Max
}

// Validate returns an ErrInvalidPin DomainError when pin is out of range.
func (r PinRange) Validate(pin int) error {
	if r.Contains(pin) {
		return nil
	}
	return NewDomainError("PinRange.Validate", ErrInvalidPin,
		fmt.Sprintf("gpio %d outside %d..%d", pin, r.Min, r.Max))
}

// Pins lists every addressable pin in ascending order.
func (r PinRange) Pins() []int {
	if r.Max < r.Min {
		return nil
	}
	out := make([]int, 0, r.Max-r.Min+1)
	for p := r.Min; p <= r.Max; p++ {
		out = append(out, p)
	}
	return out
}

// String renders the range as "min-max" for logs and mDNS TXT records.
func (r PinRange) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}
