package pinengine

import (
	"context"
	"errors"

	"pinengine/internal/domain"
	"pinengine/internal/infra/tracer"
)

// ResumeSkip records a persisted record that could not be replayed.
type ResumeSkip struct {
	Pin  int
	Mode string
	Err  error
}

// ResumeReport summarises ResumeAll.
type ResumeReport struct {
	Applied []Applied
	Skipped []ResumeSkip
}

// ResumeAll replays the persisted mode of every addressable pin, in
// ascending order, through the apply path with no revert armed. Records are
// not rewritten; records that fail to parse or apply are logged and left in
// place. A store read failure for a pin is reported in Skipped and the
// returned error wraps domain.ErrStoreFailure; the remaining pins are still
// replayed.
func (e *Engine) ResumeAll(ctx context.Context) (ResumeReport, error) {
	ctx, span := tracer.StartSpan(ctx, "Engine.ResumeAll")
	defer span.End()

	var (
		report  ResumeReport
		readErr error
	)
	for _, pin := range e.pins.Pins() {
		if err := ctx.Err(); err != nil {
			tracer.RecordError(span, err)
			return report, err
		}
		mode, ok, err := e.store.Get(ctx, pin)
		if err != nil {
			e.logger.Error("resume: read failed", "gpio", pin, "error", err)
			report.Skipped = append(report.Skipped, ResumeSkip{Pin: pin, Err: err})
			if readErr == nil {
				readErr = err
			}
			continue
		}
		if !ok {
			continue
		}
		a, err := e.resumePin(ctx, pin, mode)
		if err != nil {
			e.logger.Warn("resume: record skipped", "gpio", pin, "mode", mode, "error", err)
			report.Skipped = append(report.Skipped, ResumeSkip{Pin: pin, Mode: mode, Err: err})
			continue
		}
		report.Applied = append(report.Applied, a)
	}

	span.SetAttributes(
		tracer.Int64Attr("resume.applied", int64(len(report.Applied))),
		tracer.Int64Attr("resume.skipped", int64(len(report.Skipped))),
	)
	e.logger.Info("pin states resumed", "applied", len(report.Applied), "skipped", len(report.Skipped))

	if readErr != nil {
		if !errors.Is(readErr, domain.ErrStoreFailure) {
			readErr = domain.NewSubSystemError("store", "Engine.ResumeAll", domain.ErrStoreFailure, readErr.Error())
		}
		tracer.RecordError(span, readErr)
		return report, readErr
	}
	tracer.SetOK(span)
	return report, nil
}

func (e *Engine) resumePin(ctx context.Context, pin int, mode string) (Applied, error) {
	var out outbox
	defer out.flush(ctx, e.bus)

	e.mu.Lock()
	defer e.mu.Unlock()

	req, err := domain.NewOperationRequest(e.pins, pin, mode, 0, 0)
	if err != nil {
		return Applied{}, err
	}
	s := e.slot(pin)
	e.cancelTimersLocked(s)
	if err := e.applyLocked(ctx, s, pin, req.Mode, SourceResume, "", false, &out); err != nil {
		return Applied{}, err
	}
	e.stats.resumed.Add(1)
	out.add(domain.NewPinEvent(domain.EventPinResumed, e.clock.Now(), pin, domain.PinEventPayload{
		Mode:   req.Mode.String(),
		Source: SourceResume,
	}))
	return Applied{Pin: pin, Mode: req.Mode}, nil
}
