// Package httpapi is the HTTP command surface: the firmware's GET endpoints
// plus a dashboard, a pin snapshot, Prometheus metrics and the WebSocket
// gateway mount.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pinengine/internal/domain"
	"pinengine/internal/usecase/pinengine"
	"pinengine/internal/usecase/scheduling"
)

// Engine is the part of the pin engine the command surface drives.
type Engine interface {
	Apply(ctx context.Context, req domain.OperationRequest) (pinengine.Applied, error)
	ApplyBatch(ctx context.Context, entries []domain.BatchEntry) pinengine.BatchResult
	Schedule(ctx context.Context, req domain.OperationRequest) (pinengine.ScheduledOp, error)
	StartBlink(ctx context.Context, pin int, interval time.Duration) error
	StopBlink(pin int) bool
	Snapshot() []domain.PinStatus
	Pins() domain.PinRange
	Stats() pinengine.Stats
}

// Routines lists and removes recurring routines for /routines.
type Routines interface {
	Routines() []scheduling.RoutineInfo
	RemoveRoutine(name string) error
}

// Journal returns recent engine events for /journal.
type Journal interface {
	Tail(n int) ([]domain.Event, error)
}

// Deps holds the collaborators behind the endpoints. Gateway, Routines,
// Journal, ClientCount and DroppedEvents are optional.
type Deps struct {
	Engine   Engine
	Driver   domain.PinDriver
	Routines Routines
	Journal  Journal
	Gateway  http.Handler

	// ClientCount reports live WebSocket clients for /status.
	ClientCount func() int
	// DroppedEvents reports events lost to full subscriber queues.
	DroppedEvents func() uint64

	StartTime time.Time
	Logger    *slog.Logger
}

func (d *Deps) clients() int {
	if d.ClientCount == nil {
		return 0
	}
	return d.ClientCount()
}

func (d *Deps) dropped() uint64 {
	if d.DroppedEvents == nil {
		return 0
	}
	return d.DroppedEvents()
}
