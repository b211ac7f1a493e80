//go:build grpc

package grpcapi

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	pb "pinengine/internal/adapter/grpcapi/proto"
	"pinengine/internal/adapter/pindriver"
	"pinengine/internal/adapter/statestore"
	"pinengine/internal/domain"
	"pinengine/internal/infra/clock"
	"pinengine/internal/infra/logger"
	"pinengine/internal/usecase/pinengine"
)

type fixture struct {
	client pb.PinServiceClient
	clock  *clock.Virtual
	driver *pindriver.Sim
}

func startTestServer(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:  clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		driver: pindriver.NewSim(pindriver.Options{}),
	}
	eng := pinengine.New(f.driver, statestore.NewMemoryStore(), pinengine.Options{Clock: f.clock, Logger: logger.Discard()})
	t.Cleanup(eng.Stop)

	srv := NewServer(eng, f.driver, logger.Discard())
	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(srv.Addr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	f.client = pb.NewPinServiceClient(conn)
	return f
}

func callCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSetPinImmediateAndRead(t *testing.T) {
	f := startTestServer(t)
	ctx := callCtx(t)

	resp, err := f.client.SetPin(ctx, &pb.SetPinRequest{Gpio: 4, State: "high"})
	require.NoError(t, err)
	assert.True(t, resp.Applied)
	assert.Equal(t, "high", resp.State)
	assert.NotEmpty(t, resp.OperationId)

	read, err := f.client.ReadPin(ctx, &pb.PinRequest{Gpio: 4})
	require.NoError(t, err)
	assert.Equal(t, "HIGH", read.State)
}

func TestSetPinScheduledRevert(t *testing.T) {
	f := startTestServer(t)
	ctx := callCtx(t)

	resp, err := f.client.SetPin(ctx, &pb.SetPinRequest{Gpio: 5, State: "high", DelayMs: 1000, DurationMs: 500})
	require.NoError(t, err)
	assert.False(t, resp.Applied)

	f.clock.Advance(time.Second)
	read, err := f.client.ReadPin(ctx, &pb.PinRequest{Gpio: 5})
	require.NoError(t, err)
	assert.Equal(t, "HIGH", read.State)

	f.clock.Advance(500 * time.Millisecond)
	read, err = f.client.ReadPin(ctx, &pb.PinRequest{Gpio: 5})
	require.NoError(t, err)
	assert.Equal(t, "LOW", read.State)
}

func TestInvalidArguments(t *testing.T) {
	f := startTestServer(t)
	ctx := callCtx(t)

	_, err := f.client.SetPin(ctx, &pb.SetPinRequest{Gpio: 40, State: "high"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.SetPin(ctx, &pb.SetPinRequest{Gpio: 4, State: "pwm300"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.SetPin(ctx, &pb.SetPinRequest{Gpio: 4})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.ReadADC(ctx, &pb.PinRequest{Gpio: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.Blink(ctx, &pb.BlinkRequest{Gpio: 2, IntervalMs: -5})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.Blink(ctx, &pb.BlinkRequest{Gpio: 2, IntervalMs: domain.MaxMillis + 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.SetPin(ctx, &pb.SetPinRequest{Gpio: 4, State: "high", DurationMs: math.MaxInt64})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = f.client.SetPin(ctx, &pb.SetPinRequest{Gpio: 4, State: "high", DelayMs: domain.MaxMillis + 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, f.driver.Writes())

	_, err = f.client.ApplyBatch(ctx, &pb.ApplyBatchRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDriverFailureIsUnavailable(t *testing.T) {
	f := startTestServer(t)
	f.driver.FailWrites(7, assert.AnError)

	_, err := f.client.SetPin(callCtx(t), &pb.SetPinRequest{Gpio: 7, State: "low"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestApplyBatchReportsFailures(t *testing.T) {
	f := startTestServer(t)

	resp, err := f.client.ApplyBatch(callCtx(t), &pb.ApplyBatchRequest{Entries: []*pb.BatchEntry{
		{Gpio: 1, State: "high"},
		{Gpio: 99, State: "high"},
		{Gpio: 3, State: "pwm20"},
	}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), resp.Applied)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, int32(1), resp.Failures[0].Index)
	assert.Equal(t, int32(99), resp.Failures[0].Gpio)

	mode, ok := f.driver.Mode(3)
	require.True(t, ok)
	assert.Equal(t, "pwm20", mode.String())
}

func TestBlinkListAndStatus(t *testing.T) {
	f := startTestServer(t)
	ctx := callCtx(t)

	b, err := f.client.Blink(ctx, &pb.BlinkRequest{Gpio: 2, IntervalMs: 100})
	require.NoError(t, err)
	assert.True(t, b.Blinking)

	list, err := f.client.ListPins(ctx, &pb.Empty{})
	require.NoError(t, err)
	require.Len(t, list.Pins, 34)
	assert.True(t, list.Pins[2].Blinking)
	assert.Equal(t, int64(100), list.Pins[2].BlinkIntervalMs)

	b, err = f.client.Blink(ctx, &pb.BlinkRequest{Gpio: 2})
	require.NoError(t, err)
	assert.True(t, b.Stopped)

	_, err = f.client.SetPin(ctx, &pb.SetPinRequest{Gpio: 8, State: "low"})
	require.NoError(t, err)
	st, err := f.client.Status(ctx, &pb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Applied)
}
