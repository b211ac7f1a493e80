//go:build grpc

package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "pinengine/internal/adapter/grpcapi/proto"
	"pinengine/internal/domain"
	"pinengine/internal/usecase/pinengine"
)

// Enabled reports whether gRPC support was compiled in.
const Enabled = true

// Server serves PinService.
type Server struct {
	pb.UnimplementedPinServiceServer

	engine Engine
	driver domain.PinDriver
	logger *slog.Logger
	start  time.Time

	mu   sync.Mutex
	grpc *grpc.Server
	lis  net.Listener
}

// NewServer creates a PinService backed by engine and driver.
func NewServer(engine Engine, driver domain.PinDriver, logger *slog.Logger) *Server {
	return &Server{engine: engine, driver: driver, logger: logger, start: time.Now()}
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.traceInterceptor))
	pb.RegisterPinServiceServer(gs, s)

	s.mu.Lock()
	s.grpc, s.lis = gs, lis
	s.mu.Unlock()

	go func() {
		if err := gs.Serve(lis); err != nil {
			s.logger.Error("grpc serve stopped", "error", err)
		}
	}()
	s.logger.Info("grpc server listening", "addr", lis.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Stop drains in-flight calls and closes the listener.
func (s *Server) Stop() {
	s.mu.Lock()
	gs := s.grpc
	s.grpc = nil
	s.mu.Unlock()
	if gs != nil {
		gs.GracefulStop()
	}
}

func (s *Server) SetPin(ctx context.Context, in *pb.SetPinRequest) (*pb.SetPinResponse, error) {
	if in.State == "" {
		return nil, status.Error(codes.InvalidArgument, "state is required")
	}
	delay, err := domain.Millis("delay_ms", in.DelayMs)
	if err != nil {
		return nil, toStatus(err)
	}
	duration, err := domain.Millis("duration_ms", in.DurationMs)
	if err != nil {
		return nil, toStatus(err)
	}
	req, err := domain.NewOperationRequest(s.engine.Pins(), int(in.Gpio), in.State, delay, duration)
	if err != nil {
		return nil, toStatus(err)
	}
	op, err := s.engine.Schedule(pinengine.WithSource(ctx, pinengine.SourceGRPC), req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.SetPinResponse{
		OperationId:   op.ID,
		Gpio:          int32(op.Pin),
		State:         op.Mode.String(),
		Applied:       op.Applied,
		ApplyAtUnixMs: op.ApplyAt.UnixMilli(),
	}, nil
}

func (s *Server) ApplyBatch(ctx context.Context, in *pb.ApplyBatchRequest) (*pb.ApplyBatchResponse, error) {
	if len(in.Entries) == 0 {
		return nil, status.Error(codes.InvalidArgument, "entries are required")
	}
	entries := make([]domain.BatchEntry, len(in.Entries))
	for i, e := range in.Entries {
		if e == nil {
			return nil, status.Errorf(codes.InvalidArgument, "entry %d is empty", i)
		}
		entries[i] = domain.BatchEntry{Pin: int(e.Gpio), Mode: e.State}
	}
	res := s.engine.ApplyBatch(pinengine.WithSource(ctx, pinengine.SourceGRPC), entries)

	out := &pb.ApplyBatchResponse{Applied: int32(len(res.Applied))}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, &pb.BatchFailure{
			Index: int32(f.Index),
			Gpio:  int32(f.Pin),
			Error: f.Err.Error(),
		})
	}
	return out, nil
}

func (s *Server) ReadPin(_ context.Context, in *pb.PinRequest) (*pb.ReadPinResponse, error) {
	pin := int(in.Gpio)
	if err := s.engine.Pins().Validate(pin); err != nil {
		return nil, toStatus(err)
	}
	level, err := s.driver.ReadDigital(pin)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.ReadPinResponse{Gpio: in.Gpio, State: level.String()}, nil
}

func (s *Server) ReadADC(_ context.Context, in *pb.PinRequest) (*pb.ReadADCResponse, error) {
	pin := int(in.Gpio)
	if err := s.engine.Pins().Validate(pin); err != nil {
		return nil, toStatus(err)
	}
	v, err := s.driver.ReadAnalog(pin)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.ReadADCResponse{Gpio: in.Gpio, Value: int32(v)}, nil
}

func (s *Server) Blink(ctx context.Context, in *pb.BlinkRequest) (*pb.BlinkResponse, error) {
	pin := int(in.Gpio)
	interval, err := domain.Millis("interval_ms", in.IntervalMs)
	if err != nil {
		return nil, toStatus(err)
	}
	if interval == 0 {
		if err := s.engine.Pins().Validate(pin); err != nil {
			return nil, toStatus(err)
		}
		return &pb.BlinkResponse{Stopped: s.engine.StopBlink(pin)}, nil
	}
	if err := s.engine.StartBlink(pinengine.WithSource(ctx, pinengine.SourceGRPC), pin, interval); err != nil {
		return nil, toStatus(err)
	}
	return &pb.BlinkResponse{Blinking: true}, nil
}

func (s *Server) ListPins(_ context.Context, _ *pb.Empty) (*pb.ListPinsResponse, error) {
	snap := s.engine.Snapshot()
	out := &pb.ListPinsResponse{Pins: make([]*pb.PinStatus, 0, len(snap))}
	for _, ps := range snap {
		p := &pb.PinStatus{
			Gpio:            int32(ps.GPIO),
			State:           ps.State.String(),
			Mode:            ps.Mode,
			PendingMode:     ps.PendingMode,
			OperationId:     ps.OperationID,
			Blinking:        ps.Blinking,
			BlinkIntervalMs: ps.BlinkInterval,
		}
		if ps.ApplyAt != nil {
			p.ApplyAtUnixMs = ps.ApplyAt.UnixMilli()
		}
		if ps.RevertAt != nil {
			p.RevertAtUnixMs = ps.RevertAt.UnixMilli()
		}
		out.Pins = append(out.Pins, p)
	}
	return out, nil
}

func (s *Server) Status(_ context.Context, _ *pb.Empty) (*pb.StatusResponse, error) {
	st := s.engine.Stats()
	return &pb.StatusResponse{
		UptimeSeconds: int64(time.Since(s.start).Seconds()),
		Applied:       st.Applied,
		Reverted:      st.Reverted,
		Scheduled:     st.Scheduled,
		Dropped:       st.Dropped,
		StoreFailures: st.StoreFailures,
	}, nil
}

func (s *Server) traceInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, span := otel.Tracer("pinengine/grpcapi").Start(ctx, info.FullMethod)
	defer span.End()

	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
	}
	s.logger.Debug("grpc call", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
	return resp, err
}

func (s *Server) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("grpc handler panic", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

// toStatus maps engine errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case domain.IsValidationError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrDriverFailure):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
