package pinengine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"pinengine/internal/domain"
	"pinengine/internal/infra/tracer"
)

// ScheduledOp describes an accepted Schedule request.
type ScheduledOp struct {
	ID       string
	Pin      int
	Mode     domain.PinMode
	ApplyAt  time.Time
	Duration time.Duration
	// Applied is set when the request had no delay and was applied in-line.
	Applied bool
}

// Schedule accepts req as the pin's newest operation and cancels both
// outstanding timers on the pin. An in-line apply that fails at the driver
// leaves them armed. With no delay the mode is applied now;
// otherwise an apply timer is armed. A positive duration arms a revert that
// counts from the moment the mode is actually applied.
func (e *Engine) Schedule(ctx context.Context, req domain.OperationRequest) (ScheduledOp, error) {
	ctx, span := tracer.StartSpan(ctx, "Engine.Schedule", trace.WithAttributes(
		tracer.PinAttr(req.Pin),
		tracer.ModeAttr(req.Mode.String()),
		tracer.Int64Attr("delay_ms", req.Delay.Milliseconds()),
		tracer.Int64Attr("duration_ms", req.Duration.Milliseconds()),
	))
	defer span.End()

	var out outbox
	defer out.flush(ctx, e.bus)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := req.Validate(e.pins); err != nil {
		tracer.RecordError(span, err)
		return ScheduledOp{}, err
	}
	s := e.slot(req.Pin)

	now := e.clock.Now()
	op := ScheduledOp{
		ID:       e.newID(),
		Pin:      req.Pin,
		Mode:     req.Mode,
		ApplyAt:  now.Add(req.Delay),
		Duration: req.Duration,
	}
	span.SetAttributes(tracer.StringAttr("operation_id", op.ID))
	source := SourceFrom(ctx)

	if req.Delay == 0 {
		if err := e.applyLocked(ctx, s, req.Pin, req.Mode, source, op.ID, true, &out); err != nil {
			tracer.RecordError(span, err)
			return ScheduledOp{}, err
		}
		e.cancelTimersLocked(s)
		if req.Duration > 0 {
			e.armRevertLocked(s, req.Pin, req.Duration, op.ID)
		}
		op.Applied = true
		tracer.SetOK(span)
		return op, nil
	}

	e.cancelTimersLocked(s)
	gen := e.nextGen()
	pin := req.Pin
	s.pending = &pendingOp{id: op.ID, req: req, applyAt: op.ApplyAt, source: source}
	s.applyGen = gen
	s.applyT = e.clock.AfterFunc(req.Delay, func() { e.fireApply(pin, gen) })
	s.state = domain.StatePendingScheduled
	e.stats.scheduled.Add(1)

	e.logger.Info("operation scheduled", "gpio", pin, "mode", req.Mode.String(),
		"operation_id", op.ID, "delay", req.Delay, "duration", req.Duration)
	out.add(domain.NewPinEvent(domain.EventPinScheduled, now, pin, domain.PinEventPayload{
		Mode:        req.Mode.String(),
		Source:      source,
		OperationID: op.ID,
		DelayMs:     req.Delay.Milliseconds(),
		DurationMs:  req.Duration.Milliseconds(),
	}))
	tracer.SetOK(span)
	return op, nil
}

// CancelApply disarms the pending apply on pin. It reports whether one was
// pending.
func (e *Engine) CancelApply(pin int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[pin]
	if !ok || s.pending == nil {
		return false
	}
	e.cancelApplyLocked(s)
	s.state = stateAfterCancel(s)
	return true
}

// CancelRevert disarms the revert on pin, leaving the applied mode and its
// persisted record in place. It reports whether a revert was armed.
func (e *Engine) CancelRevert(pin int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[pin]
	if !ok || s.revertT == nil {
		return false
	}
	e.cancelRevertLocked(s)
	s.state = stateAfterCancel(s)
	return true
}

func (e *Engine) fireApply(pin int, gen uint64) {
	ctx, span := tracer.StartSpan(context.Background(), "Engine.fireApply",
		trace.WithAttributes(tracer.PinAttr(pin)))
	defer span.End()

	var out outbox
	defer out.flush(ctx, e.bus)

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[pin]
	if !ok || s.applyGen != gen || s.pending == nil {
		return
	}
	op := s.pending
	s.pending = nil
	s.applyT = nil
	s.state = stateAfterCancel(s)

	if err := op.req.Validate(e.pins); err != nil {
		e.dropLocked(pin, op.id, "invalid at fire time", err, &out)
		tracer.RecordError(span, err)
		return
	}
	if err := e.applyLocked(ctx, s, pin, op.req.Mode, SourceTimer, op.id, true, &out); err != nil {
		e.dropLocked(pin, op.id, "apply failed", err, &out)
		tracer.RecordError(span, err)
		return
	}
	if op.req.Duration > 0 {
		e.armRevertLocked(s, pin, op.req.Duration, op.id)
	}
	tracer.SetOK(span)
}

func (e *Engine) armRevertLocked(s *slot, pin int, d time.Duration, opID string) {
	gen := e.nextGen()
	s.revertGen = gen
	s.revertAt = e.clock.Now().Add(d)
	s.revertOp = opID
	s.revertT = e.clock.AfterFunc(d, func() { e.fireRevert(pin, gen) })
	s.state = domain.StateActiveTimed
}

// fireRevert drives the revert level, then deletes the pin's record.
func (e *Engine) fireRevert(pin int, gen uint64) {
	ctx, span := tracer.StartSpan(context.Background(), "Engine.fireRevert",
		trace.WithAttributes(tracer.PinAttr(pin)))
	defer span.End()

	var out outbox
	defer out.flush(ctx, e.bus)

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[pin]
	if !ok || s.revertGen != gen || s.revertT == nil {
		return
	}
	opID := s.revertOp
	s.revertT = nil
	s.revertOp = ""
	s.state = stateAfterCancel(s)

	if err := e.pins.Validate(pin); err != nil {
		e.dropLocked(pin, opID, "invalid at fire time", err, &out)
		return
	}
	target := s.mode.Revert()
	if err := e.driver.WriteDigital(pin, target.Level); err != nil {
		e.dropLocked(pin, opID, "revert write failed", err, &out)
		tracer.RecordError(span, err)
		return
	}
	from := s.mode
	s.mode = target
	s.applied = false
	s.state = stateAfterCancel(s)
	e.stats.reverted.Add(1)

	if err := e.store.Delete(ctx, pin); err != nil {
		e.storeFailureLocked(pin, "delete", err, &out)
	}

	e.logger.Info("pin reverted", "gpio", pin, "from", from.String(), "to", target.String(), "operation_id", opID)
	out.add(domain.NewPinEvent(domain.EventPinReverted, e.clock.Now(), pin, domain.PinEventPayload{
		Mode:        target.String(),
		Source:      SourceTimer,
		OperationID: opID,
	}))
	tracer.SetOK(span)
}

func (e *Engine) cancelTimersLocked(s *slot) {
	e.cancelApplyLocked(s)
	e.cancelRevertLocked(s)
	s.state = stateAfterCancel(s)
}

func (e *Engine) cancelApplyLocked(s *slot) {
	if s.applyT != nil {
		s.applyT.Stop()
		s.applyT = nil
	}
	s.applyGen = 0
	s.pending = nil
}

func (e *Engine) cancelRevertLocked(s *slot) {
	if s.revertT != nil {
		s.revertT.Stop()
		s.revertT = nil
	}
	s.revertGen = 0
	s.revertOp = ""
}

// stateAfterCancel derives the apply/revert state from what is still armed.
func stateAfterCancel(s *slot) domain.PinState {
	switch {
	case s.pending != nil:
		return domain.StatePendingScheduled
	case s.revertT != nil:
		return domain.StateActiveTimed
	case s.applied:
		return domain.StateActive
	default:
		return domain.StateIdle
	}
}
