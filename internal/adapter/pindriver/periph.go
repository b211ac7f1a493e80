//go:build edge

package pindriver

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"pinengine/internal/domain"
)

// Periph drives real pins through periph.io. Pins are resolved by name
// (prefix + number, e.g. "GPIO17") and cached. ADC channels are separate
// resources (on-chip or an external converter) registered per pin.
type Periph struct {
	mu      sync.Mutex
	prefix  string
	freq    physic.Frequency
	pins    map[int]gpio.PinIO
	outputs map[int]bool
	adc     map[int]analog.PinADC
}

func newHardware(opts Options) (domain.PinDriver, error) {
	return NewPeriph(opts)
}

// NewPeriph initializes the periph.io host drivers.
func NewPeriph(opts Options) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return newPeriph(opts), nil
}

func newPeriph(opts Options) *Periph {
	opts = opts.withDefaults()
	return &Periph{
		prefix:  opts.PinPrefix,
		freq:    physic.Frequency(opts.PWMFrequencyHz) * physic.Hertz,
		pins:    make(map[int]gpio.PinIO),
		outputs: make(map[int]bool),
		adc:     make(map[int]analog.PinADC),
	}
}

// RegisterADC routes ReadAnalog for pin to ch.
func (p *Periph) RegisterADC(pin int, ch analog.PinADC) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adc[pin] = ch
}

// resolve must be called with p.mu held.
func (p *Periph) resolve(pin int) (gpio.PinIO, error) {
	if io, ok := p.pins[pin]; ok {
		return io, nil
	}
	name := fmt.Sprintf("%s%d", p.prefix, pin)
	io := gpioreg.ByName(name)
	if io == nil {
		return nil, driverError("Periph.resolve", pin, fmt.Errorf("%s not found in hardware", name))
	}
	p.pins[pin] = io
	return io, nil
}

func (p *Periph) WriteDigital(pin int, level domain.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	io, err := p.resolve(pin)
	if err != nil {
		return err
	}
	if err := io.Out(gpio.Level(level == domain.LevelHigh)); err != nil {
		return driverError("Periph.WriteDigital", pin, err)
	}
	p.outputs[pin] = true
	return nil
}

func (p *Periph) WritePWM(pin int, duty uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	io, err := p.resolve(pin)
	if err != nil {
		return err
	}
	d := gpio.Duty(uint64(duty) * uint64(gpio.DutyMax) / domain.MaxDuty)
	if err := io.PWM(d, p.freq); err != nil {
		return driverError("Periph.WritePWM", pin, err)
	}
	p.outputs[pin] = true
	return nil
}

// ReadDigital samples the pin. Pins never driven by this process are switched
// to input first; driven outputs are read back without reconfiguring them.
func (p *Periph) ReadDigital(pin int) (domain.Level, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	io, err := p.resolve(pin)
	if err != nil {
		return domain.LevelLow, err
	}
	if !p.outputs[pin] {
		if err := io.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return domain.LevelLow, driverError("Periph.ReadDigital", pin, err)
		}
	}
	if io.Read() == gpio.High {
		return domain.LevelHigh, nil
	}
	return domain.LevelLow, nil
}

// ReadAnalog reads the raw sample of the ADC channel registered for pin.
func (p *Periph) ReadAnalog(pin int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	adc, ok := p.adc[pin]
	if !ok {
		return 0, driverError("Periph.ReadAnalog", pin, fmt.Errorf("no ADC channel"))
	}
	s, err := adc.Read()
	if err != nil {
		return 0, driverError("Periph.ReadAnalog", pin, err)
	}
	return int(s.Raw), nil
}

// Close halts every pin this driver touched.
func (p *Periph) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for pin, io := range p.pins {
		if err := io.Halt(); err != nil && firstErr == nil {
			firstErr = driverError("Periph.Close", pin, err)
		}
	}
	for pin, ch := range p.adc {
		if err := ch.Halt(); err != nil && firstErr == nil {
			firstErr = driverError("Periph.Close", pin, err)
		}
	}
	p.pins = make(map[int]gpio.PinIO)
	p.outputs = make(map[int]bool)
	return firstErr
}
