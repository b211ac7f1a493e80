package domain

import "context"

// PinDriver applies electrical state to pins. Implementations must be safe
// for concurrent use; the engine serialises its own calls but the HTTP read
// endpoints call ReadDigital and ReadAnalog directly.
type PinDriver interface {
	// WriteDigital configures pin as an output and drives it to level.
	WriteDigital(pin int, level Level) error
	// WritePWM configures pin for PWM at PWMFrequencyHz and sets the duty.
	WritePWM(pin int, duty uint8) error
	// ReadDigital samples the pin's current logic level.
	ReadDigital(pin int) (Level, error)
	// ReadAnalog samples the pin's ADC channel.
	ReadAnalog(pin int) (int, error)
	// Close releases hardware resources.
	Close() error
}

// StateStore is the durable pin-state key/value namespace. Keys are decimal
// pin ids and values canonical mode strings. Calls are synchronous.
type StateStore interface {
	Get(ctx context.Context, pin int) (mode string, ok bool, err error)
	Put(ctx context.Context, pin int, mode string) error
	Delete(ctx context.Context, pin int) error
	// ForEach visits every record in ascending pin order. Returning an error
	// from fn stops the iteration and is returned as-is.
	ForEach(ctx context.Context, fn func(pin int, mode string) error) error
	Close() error
}
