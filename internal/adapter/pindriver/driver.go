// Package pindriver provides domain.PinDriver implementations: a simulated
// pin bank for development and tests, and a periph.io backend for Linux
// boards (edge build tag).
package pindriver

import (
	"fmt"
	"log/slog"

	"pinengine/internal/domain"
)

// Options configures a driver backend.
type Options struct {
	PinPrefix      string // periph pin name prefix, "GPIO" by default
	PWMFrequencyHz int
	ADCMax         int // full-scale simulated ADC reading
}

func (o Options) withDefaults() Options {
	if o.PinPrefix == "" {
		o.PinPrefix = "GPIO"
	}
	if o.PWMFrequencyHz <= 0 {
		o.PWMFrequencyHz = domain.PWMFrequencyHz
	}
	if o.ADCMax <= 0 {
		o.ADCMax = 4095
	}
	return o
}

// New returns the backend named by backend ("sim" or "periph"). When the
// periph backend fails to initialise, New falls back to the simulator and
// logs a warning, so a board without GPIO access still serves the API.
func New(backend string, opts Options, logger *slog.Logger) (domain.PinDriver, error) {
	switch backend {
	case "sim", "":
		return NewSim(opts), nil
	case "periph":
		p, err := newHardware(opts)
		if err != nil {
			logger.Warn("periph backend unavailable, using simulated pins", "error", err)
			return NewSim(opts), nil
		}
		logger.Info("periph backend initialised")
		return p, nil
	default:
		return nil, fmt.Errorf("unknown pin driver backend %q", backend)
	}
}

func driverError(op string, pin int, err error) error {
	return domain.NewSubSystemError("driver", op, domain.ErrDriverFailure,
		fmt.Sprintf("gpio %d: %v", pin, err))
}
