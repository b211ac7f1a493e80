package pinengine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"pinengine/internal/domain"
	"pinengine/internal/infra/clock"
	"pinengine/internal/infra/tracer"
)

type blinker struct {
	interval time.Duration
	level    domain.Level
	timer    clock.Timer
	gen      uint64
}

// StartBlink toggles pin every interval, starting from its current level,
// until StopBlink or another StartBlink on the same pin. A failed read of the
// starting level leaves any running blink in place. Blinking is not
// persisted and leaves the apply and revert timers alone.
func (e *Engine) StartBlink(ctx context.Context, pin int, interval time.Duration) error {
	ctx, span := tracer.StartSpan(ctx, "Engine.StartBlink", trace.WithAttributes(
		tracer.PinAttr(pin), tracer.Int64Attr("interval_ms", interval.Milliseconds())))
	defer span.End()

	var out outbox
	defer out.flush(ctx, e.bus)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.pins.Validate(pin); err != nil {
		tracer.RecordError(span, err)
		return err
	}
	if interval <= 0 {
		err := domain.NewDomainError("Engine.StartBlink", domain.ErrInvalidInput,
			fmt.Sprintf("interval %s must be positive", interval))
		tracer.RecordError(span, err)
		return err
	}

	level, err := e.driver.ReadDigital(pin)
	if err != nil {
		tracer.RecordError(span, err)
		return err
	}
	s := e.slot(pin)
	e.stopBlinkLocked(s)
	b := &blinker{interval: interval, level: level, gen: e.nextGen()}
	s.blink = b
	e.armBlinkLocked(pin, b)

	e.logger.Info("blink started", "gpio", pin, "interval", interval)
	out.add(domain.NewPinEvent(domain.EventBlinkStarted, e.clock.Now(), pin, domain.PinEventPayload{
		Source:     SourceFrom(ctx),
		IntervalMs: interval.Milliseconds(),
	}))
	tracer.SetOK(span)
	return nil
}

// StopBlink stops blinking on pin and reports whether it was blinking. The
// pin keeps whatever level the last tick left it at.
func (e *Engine) StopBlink(pin int) bool {
	var out outbox
	defer out.flush(context.Background(), e.bus)

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[pin]
	if !ok || s.blink == nil {
		return false
	}
	e.stopBlinkLocked(s)
	e.logger.Info("blink stopped", "gpio", pin)
	out.add(domain.NewPinEvent(domain.EventBlinkStopped, e.clock.Now(), pin, domain.PinEventPayload{}))
	return true
}

func (e *Engine) armBlinkLocked(pin int, b *blinker) {
	gen := b.gen
	b.timer = e.clock.AfterFunc(b.interval, func() { e.blinkTick(pin, gen) })
}

func (e *Engine) blinkTick(pin int, gen uint64) {
	var out outbox
	defer out.flush(context.Background(), e.bus)

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[pin]
	if !ok || s.blink == nil || s.blink.gen != gen {
		return
	}
	b := s.blink
	next := b.level.Toggle()
	if err := e.driver.WriteDigital(pin, next); err != nil {
		s.blink = nil
		e.dropLocked(pin, "", "blink write failed", err, &out)
		out.add(domain.NewPinEvent(domain.EventBlinkStopped, e.clock.Now(), pin, domain.PinEventPayload{
			Error: err.Error(),
		}))
		return
	}
	b.level = next
	e.stats.blinkTicks.Add(1)
	e.armBlinkLocked(pin, b)
}

func (e *Engine) stopBlinkLocked(s *slot) {
	if s.blink == nil {
		return
	}
	if s.blink.timer != nil {
		s.blink.timer.Stop()
	}
	s.blink = nil
}
