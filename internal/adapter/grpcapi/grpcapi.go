// Package grpcapi exposes the pin engine as a gRPC service. The service is
// compiled in with the grpc build tag; without it NewServer returns a server
// whose Start reports the feature as disabled.
package grpcapi

import (
	"context"
	"time"

	"pinengine/internal/domain"
	"pinengine/internal/usecase/pinengine"
)

// Engine is the part of the pin engine served over gRPC.
type Engine interface {
	Schedule(ctx context.Context, req domain.OperationRequest) (pinengine.ScheduledOp, error)
	ApplyBatch(ctx context.Context, entries []domain.BatchEntry) pinengine.BatchResult
	StartBlink(ctx context.Context, pin int, interval time.Duration) error
	StopBlink(pin int) bool
	Snapshot() []domain.PinStatus
	Pins() domain.PinRange
	Stats() pinengine.Stats
}
