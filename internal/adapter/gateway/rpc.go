package gateway

import (
	"context"
	"encoding/json"
	"time"

	"pinengine/internal/domain"
	"pinengine/internal/usecase/pinengine"
)

// Engine is the slice of the pin engine exposed over RPC.
type Engine interface {
	Schedule(ctx context.Context, req domain.OperationRequest) (pinengine.ScheduledOp, error)
	StartBlink(ctx context.Context, pin int, interval time.Duration) error
	StopBlink(pin int) bool
	Snapshot() []domain.PinStatus
	Pins() domain.PinRange
}

type setParams struct {
	GPIO       *int   `json:"gpio"`
	State      string `json:"state"`
	DelayMs    int64  `json:"delay_ms"`
	DurationMs int64  `json:"duration_ms"`
}

type setResult struct {
	OperationID string    `json:"operation_id"`
	GPIO        int       `json:"gpio"`
	State       string    `json:"state"`
	Applied     bool      `json:"applied"`
	ApplyAt     time.Time `json:"apply_at"`
}

type blinkParams struct {
	GPIO       *int  `json:"gpio"`
	IntervalMs int64 `json:"interval_ms"`
}

// RegisterEngineMethods exposes the engine as RPC methods:
//
//	pins.list  -> []PinStatus
//	pin.set    {gpio, state, delay_ms?, duration_ms?}
//	pin.blink  {gpio, interval_ms}; interval_ms 0 stops blinking
func RegisterEngineMethods(s *Server, eng Engine) {
	s.RegisterHandler("pins.list", func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(eng.Snapshot())
	})

	s.RegisterHandler("pin.set", func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var p setParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, domain.NewDomainError("pin.set", domain.ErrInvalidInput, err.Error())
		}
		if p.GPIO == nil || p.State == "" {
			return nil, domain.NewDomainError("pin.set", domain.ErrMissingParameter, "gpio and state are required")
		}
		delay, err := domain.Millis("delay_ms", p.DelayMs)
		if err != nil {
			return nil, err
		}
		duration, err := domain.Millis("duration_ms", p.DurationMs)
		if err != nil {
			return nil, err
		}
		req, err := domain.NewOperationRequest(eng.Pins(), *p.GPIO, p.State, delay, duration)
		if err != nil {
			return nil, err
		}
		op, err := eng.Schedule(pinengine.WithSource(ctx, pinengine.SourceGateway), req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(setResult{
			OperationID: op.ID,
			GPIO:        op.Pin,
			State:       op.Mode.String(),
			Applied:     op.Applied,
			ApplyAt:     op.ApplyAt,
		})
	})

	s.RegisterHandler("pin.blink", func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var p blinkParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, domain.NewDomainError("pin.blink", domain.ErrInvalidInput, err.Error())
		}
		if p.GPIO == nil {
			return nil, domain.NewDomainError("pin.blink", domain.ErrMissingParameter, "gpio is required")
		}
		if err := eng.Pins().Validate(*p.GPIO); err != nil {
			return nil, err
		}
		interval, err := domain.Millis("interval_ms", p.IntervalMs)
		if err != nil {
			return nil, err
		}
		if interval == 0 {
			stopped := eng.StopBlink(*p.GPIO)
			return json.Marshal(map[string]bool{"stopped": stopped})
		}
		ctx = pinengine.WithSource(ctx, pinengine.SourceGateway)
		if err := eng.StartBlink(ctx, *p.GPIO, interval); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]bool{"started": true})
	})
}
