package pindriver

import (
	"sync"

	"pinengine/internal/domain"
)

// Write is one recorded driver call on the simulator.
type Write struct {
	Pin  int
	Mode domain.PinMode
}

type simPin struct {
	mode    domain.PinMode
	written bool
}

// Sim is an in-memory pin bank. Reads reflect the last write; analog reads
// are derived from the output unless overridden with SetAnalog.
type Sim struct {
	mu       sync.Mutex
	adcMax   int
	pins     map[int]*simPin
	analog   map[int]int
	history  []Write
	failPins map[int]error
	failRead map[int]error
	closed   bool
}

// NewSim returns an empty simulated pin bank.
func NewSim(opts Options) *Sim {
	opts = opts.withDefaults()
	return &Sim{
		adcMax:   opts.ADCMax,
		pins:     make(map[int]*simPin),
		analog:   make(map[int]int),
		failPins: make(map[int]error),
		failRead: make(map[int]error),
	}
}

func (s *Sim) WriteDigital(pin int, level domain.Level) error {
	return s.write("Sim.WriteDigital", pin, domain.Digital(level))
}

func (s *Sim) WritePWM(pin int, duty uint8) error {
	return s.write("Sim.WritePWM", pin, domain.PWM(duty))
}

func (s *Sim) write(op string, pin int, mode domain.PinMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failPins[pin]; err != nil {
		return driverError(op, pin, err)
	}
	p, ok := s.pins[pin]
	if !ok {
		p = &simPin{}
		s.pins[pin] = p
	}
	p.mode = mode
	p.written = true
	s.history = append(s.history, Write{Pin: pin, Mode: mode})
	return nil
}

// ReadDigital returns the driven level. A PWM output reads HIGH above half
// duty. Untouched pins read LOW.
func (s *Sim) ReadDigital(pin int) (domain.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failRead[pin]; err != nil {
		return domain.LevelLow, driverError("Sim.ReadDigital", pin, err)
	}
	p, ok := s.pins[pin]
	if !ok {
		return domain.LevelLow, nil
	}
	if p.mode.IsPWM() {
		if int(p.mode.Duty) > domain.MaxDuty/2 {
			return domain.LevelHigh, nil
		}
		return domain.LevelLow, nil
	}
	return p.mode.Level, nil
}

func (s *Sim) ReadAnalog(pin int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.analog[pin]; ok {
		return v, nil
	}
	p, ok := s.pins[pin]
	if !ok {
		return 0, nil
	}
	if p.mode.IsPWM() {
		return int(p.mode.Duty) * s.adcMax / domain.MaxDuty, nil
	}
	if p.mode.Level == domain.LevelHigh {
		return s.adcMax, nil
	}
	return 0, nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// SetAnalog pins the ADC reading for pin regardless of its output.
func (s *Sim) SetAnalog(pin, value int) {
	s.mu.Lock()
	s.analog[pin] = value
	s.mu.Unlock()
}

// FailWrites makes every write to pin fail with err. A nil err clears it.
func (s *Sim) FailWrites(pin int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failPins, pin)
		return
	}
	s.failPins[pin] = err
}

// FailReads makes digital reads of pin fail with err. A nil err clears it.
func (s *Sim) FailReads(pin int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failRead, pin)
		return
	}
	s.failRead[pin] = err
}

// Mode returns the last mode written to pin.
func (s *Sim) Mode(pin int) (domain.PinMode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pins[pin]
	if !ok || !p.written {
		return domain.PinMode{}, false
	}
	return p.mode, true
}

// Writes returns a copy of every write in call order.
func (s *Sim) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Write, len(s.history))
	copy(out, s.history)
	return out
}

// Closed reports whether Close was called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
