// Package pinengine decides what each pin's output should be at any moment.
// It validates and applies modes, arms the per-pin apply and revert timers,
// drives blink toggles, persists applied modes and replays them at boot.
package pinengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"pinengine/internal/domain"
	"pinengine/internal/infra/clock"
	"pinengine/internal/infra/tracer"
)

// Options configures an Engine. Nil fields take defaults.
type Options struct {
	Pins   *domain.PinRange // DefaultPinRange when nil
	Clock  clock.Clock     // wall clock when nil
	Bus    domain.EventBus // events are not published when nil
	Logger *slog.Logger
}

// Applied describes a mode that reached the driver.
type Applied struct {
	Pin  int
	Mode domain.PinMode
}

// BatchResult collects the outcome of ApplyBatch.
type BatchResult struct {
	Applied  []Applied
	Failures []domain.BatchFailure
}

// Err joins the failures into one error, or returns nil when every entry
// was applied.
func (r BatchResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		msgs[i] = f.Error()
	}
	return &BatchError{Failures: r.Failures, msg: strings.Join(msgs, "; ")}
}

// BatchError is returned by BatchResult.Err.
type BatchError struct {
	Failures []domain.BatchFailure
	msg      string
}

func (e *BatchError) Error() string { return e.msg }

// Unwrap exposes every entry error to errors.Is.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}

// Stats are monotonically increasing engine counters.
type Stats struct {
	Applied       uint64
	Reverted      uint64
	Scheduled     uint64
	Resumed       uint64
	Dropped       uint64
	StoreFailures uint64
	BlinkTicks    uint64
}

type counters struct {
	applied       atomic.Uint64
	reverted      atomic.Uint64
	scheduled     atomic.Uint64
	resumed       atomic.Uint64
	dropped       atomic.Uint64
	storeFailures atomic.Uint64
	blinkTicks    atomic.Uint64
}

// Engine is the pin operation engine. Every mutation, including timer
// callbacks, runs under a single mutex; events are published after it is
// released.
type Engine struct {
	mu      sync.Mutex
	pins    domain.PinRange
	driver  domain.PinDriver
	store   domain.StateStore
	clock   clock.Clock
	bus     domain.EventBus
	logger  *slog.Logger
	slots   map[int]*slot
	gen     uint64
	entropy io.Reader
	stats   counters
}

// slot is the engine's per-pin working memory.
type slot struct {
	state   domain.PinState
	mode    domain.PinMode // last mode written through the apply path
	applied bool

	pending   *pendingOp
	applyT    clock.Timer
	applyGen  uint64
	revertT   clock.Timer
	revertGen uint64
	revertAt  time.Time
	revertOp  string

	blink *blinker
}

type pendingOp struct {
	id      string
	req     domain.OperationRequest
	applyAt time.Time
	source  string
}

// New creates an Engine over driver and store.
func New(driver domain.PinDriver, store domain.StateStore, opts Options) *Engine {
	pins := domain.DefaultPinRange
	if opts.Pins != nil {
		pins = *opts.Pins
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	now := opts.Clock.Now()
	return &Engine{
		pins:    pins,
		driver:  driver,
		store:   store,
		clock:   opts.Clock,
		bus:     opts.Bus,
		logger:  opts.Logger,
		slots:   make(map[int]*slot),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0),
	}
}

// Pins returns the addressable pin range.
func (e *Engine) Pins() domain.PinRange { return e.pins }

// Apply validates req and drives its mode immediately, replacing any pending
// or timed operation on the pin. A driver failure leaves the pin's timers
// armed. A positive req.Duration arms a revert that
// long from now; req.Delay is ignored (see Schedule).
func (e *Engine) Apply(ctx context.Context, req domain.OperationRequest) (Applied, error) {
	ctx, span := tracer.StartSpan(ctx, "Engine.Apply",
		trace.WithAttributes(tracer.PinAttr(req.Pin), tracer.ModeAttr(req.Mode.String())))
	defer span.End()

	var out outbox
	defer out.flush(ctx, e.bus)

	e.mu.Lock()
	defer e.mu.Unlock()

	req.Delay = 0
	if err := req.Validate(e.pins); err != nil {
		tracer.RecordError(span, err)
		return Applied{}, err
	}
	s := e.slot(req.Pin)

	// Timers are replaced only once the new mode is on the pin.
	source := SourceFrom(ctx)
	if err := e.applyLocked(ctx, s, req.Pin, req.Mode, source, "", true, &out); err != nil {
		tracer.RecordError(span, err)
		return Applied{}, err
	}
	e.cancelTimersLocked(s)
	if req.Duration > 0 {
		e.armRevertLocked(s, req.Pin, req.Duration, "")
	}
	tracer.SetOK(span)
	return Applied{Pin: req.Pin, Mode: req.Mode}, nil
}

// ApplyBatch applies entries in order. Each entry is parsed and applied on its
// own; a failing entry is recorded and the rest still run.
func (e *Engine) ApplyBatch(ctx context.Context, entries []domain.BatchEntry) BatchResult {
	ctx, span := tracer.StartSpan(ctx, "Engine.ApplyBatch",
		trace.WithAttributes(tracer.Int64Attr("batch.size", int64(len(entries)))))
	defer span.End()

	ctx = WithSource(ctx, SourceBatch)
	var res BatchResult
	for i, entry := range entries {
		req, err := domain.NewOperationRequest(e.pins, entry.Pin, entry.Mode, 0, 0)
		if err == nil {
			var a Applied
			a, err = e.Apply(ctx, req)
			if err == nil {
				res.Applied = append(res.Applied, a)
				continue
			}
		}
		res.Failures = append(res.Failures, domain.BatchFailure{Index: i, Pin: entry.Pin, Err: err})
	}
	if len(res.Failures) > 0 {
		span.SetAttributes(tracer.Int64Attr("batch.failures", int64(len(res.Failures))))
	} else {
		tracer.SetOK(span)
	}
	return res
}

// Status returns the engine's view of pin.
func (e *Engine) Status(pin int) (domain.PinStatus, error) {
	if err := e.pins.Validate(pin); err != nil {
		return domain.PinStatus{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked(pin), nil
}

// Snapshot returns the status of every addressable pin in ascending order.
func (e *Engine) Snapshot() []domain.PinStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	pins := e.pins.Pins()
	out := make([]domain.PinStatus, 0, len(pins))
	for _, p := range pins {
		out = append(out, e.statusLocked(p))
	}
	return out
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Applied:       e.stats.applied.Load(),
		Reverted:      e.stats.reverted.Load(),
		Scheduled:     e.stats.scheduled.Load(),
		Resumed:       e.stats.resumed.Load(),
		Dropped:       e.stats.dropped.Load(),
		StoreFailures: e.stats.storeFailures.Load(),
		BlinkTicks:    e.stats.blinkTicks.Load(),
	}
}

// Stop disarms every timer and blink. Persisted records are left as they are.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.slots {
		e.cancelTimersLocked(s)
		e.stopBlinkLocked(s)
		s.state = stateAfterCancel(s)
	}
	e.logger.Info("pin engine stopped")
}

func (e *Engine) statusLocked(pin int) domain.PinStatus {
	st := domain.PinStatus{GPIO: pin, State: domain.StateIdle}
	s, ok := e.slots[pin]
	if !ok {
		return st
	}
	st.State = s.state
	if s.applied {
		st.Mode = s.mode.String()
	}
	if s.pending != nil {
		st.PendingMode = s.pending.req.Mode.String()
		st.OperationID = s.pending.id
		at := s.pending.applyAt
		st.ApplyAt = &at
	}
	if s.revertT != nil {
		at := s.revertAt
		st.RevertAt = &at
		if st.OperationID == "" {
			st.OperationID = s.revertOp
		}
	}
	if s.blink != nil {
		st.Blinking = true
		st.BlinkInterval = s.blink.interval.Milliseconds()
	}
	return st
}

func (e *Engine) slot(pin int) *slot {
	s, ok := e.slots[pin]
	if !ok {
		s = &slot{}
		e.slots[pin] = s
	}
	return s
}

// applyLocked drives mode onto pin and, when persist is set, records it.
// Store failures are logged and published but do not fail the apply.
func (e *Engine) applyLocked(ctx context.Context, s *slot, pin int, mode domain.PinMode, source, opID string, persist bool, out *outbox) error {
	var err error
	if mode.IsPWM() {
		err = e.driver.WritePWM(pin, mode.Duty)
	} else {
		err = e.driver.WriteDigital(pin, mode.Level)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrDriverFailure) {
			err = domain.NewSubSystemError("driver", "Engine.apply", domain.ErrDriverFailure, err.Error())
		}
		return err
	}

	s.mode = mode
	s.applied = true
	s.state = domain.StateActive
	e.stats.applied.Add(1)

	if persist {
		if perr := e.store.Put(ctx, pin, mode.String()); perr != nil {
			e.storeFailureLocked(pin, "put", perr, out)
		}
	}

	e.logger.Debug("pin applied", "gpio", pin, "mode", mode.String(), "source", source)
	out.add(domain.NewPinEvent(domain.EventPinApplied, e.clock.Now(), pin, domain.PinEventPayload{
		Mode:        mode.String(),
		Source:      source,
		OperationID: opID,
	}))
	return nil
}

func (e *Engine) storeFailureLocked(pin int, op string, err error, out *outbox) {
	e.stats.storeFailures.Add(1)
	e.logger.Error("state store write failed", "gpio", pin, "op", op, "error", err,
		"code", string(domain.ErrorCodeOf(err)))
	out.add(domain.NewPinEvent(domain.EventStoreFailure, e.clock.Now(), pin, domain.PinEventPayload{
		Error: err.Error(),
	}))
}

func (e *Engine) dropLocked(pin int, opID, reason string, err error, out *outbox) {
	e.stats.dropped.Add(1)
	e.logger.Error("timed operation dropped", "gpio", pin, "operation_id", opID, "reason", reason, "error", err)
	out.add(domain.NewPinEvent(domain.EventOperationDrop, e.clock.Now(), pin, domain.PinEventPayload{
		Source:      SourceTimer,
		OperationID: opID,
		Error:       err.Error(),
	}))
}

func (e *Engine) nextGen() uint64 {
	e.gen++
	return e.gen
}

func (e *Engine) newID() string {
	return ulid.MustNew(ulid.Timestamp(e.clock.Now()), e.entropy).String()
}

// outbox buffers events raised under the engine mutex.
type outbox []domain.Event

func (o *outbox) add(ev domain.Event) { *o = append(*o, ev) }

func (o *outbox) flush(ctx context.Context, bus domain.EventBus) {
	if bus == nil {
		return
	}
	for _, ev := range *o {
		bus.Publish(ctx, ev)
	}
}
