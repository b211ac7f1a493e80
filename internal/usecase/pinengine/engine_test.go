package pinengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinengine/internal/adapter/pindriver"
	"pinengine/internal/adapter/statestore"
	"pinengine/internal/domain"
	"pinengine/internal/infra/clock"
	"pinengine/internal/infra/logger"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// recordingBus delivers events synchronously so tests can assert on them
// without waiting.
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, ev domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()               { return func() {} }
func (b *recordingBus) Close()                                                {}

func (b *recordingBus) types() []domain.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Type
	}
	return out
}

func (b *recordingBus) count(t domain.EventType) int {
	n := 0
	for _, got := range b.types() {
		if got == t {
			n++
		}
	}
	return n
}

type harness struct {
	engine *Engine
	clock  *clock.Virtual
	driver *pindriver.Sim
	store  *statestore.MemoryStore
	bus    *recordingBus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  clock.NewVirtual(epoch),
		driver: pindriver.NewSim(pindriver.Options{}),
		store:  statestore.NewMemoryStore(),
		bus:    &recordingBus{},
	}
	h.engine = New(h.driver, h.store, Options{
		Clock:  h.clock,
		Bus:    h.bus,
		Logger: logger.Discard(),
	})
	t.Cleanup(h.engine.Stop)
	return h
}

func mustReq(t *testing.T, pin int, mode string, delay, duration time.Duration) domain.OperationRequest {
	t.Helper()
	req, err := domain.NewOperationRequest(domain.DefaultPinRange, pin, mode, delay, duration)
	require.NoError(t, err)
	return req
}

func (h *harness) level(t *testing.T, pin int) domain.Level {
	t.Helper()
	l, err := h.driver.ReadDigital(pin)
	require.NoError(t, err)
	return l
}

func (h *harness) record(pin int) (string, bool) {
	v, ok := h.store.Snapshot()[pin]
	return v, ok
}

func TestNewPinRange(t *testing.T) {
	drv := pindriver.NewSim(pindriver.Options{})
	def := New(drv, statestore.NewMemoryStore(), Options{Logger: logger.Discard()})
	t.Cleanup(def.Stop)
	assert.Equal(t, domain.DefaultPinRange, def.Pins())

	single := domain.PinRange{Min: 0, Max: 0}
	e := New(drv, statestore.NewMemoryStore(), Options{Pins: &single, Clock: clock.NewVirtual(epoch), Logger: logger.Discard()})
	t.Cleanup(e.Stop)
	assert.Equal(t, single, e.Pins())

	ctx := context.Background()
	req0, err := domain.NewOperationRequest(single, 0, "high", 0, 0)
	require.NoError(t, err)
	_, err = e.Apply(ctx, req0)
	require.NoError(t, err)

	_, err = e.Apply(ctx, domain.OperationRequest{Pin: 1, Mode: domain.Digital(domain.LevelHigh)})
	assert.ErrorIs(t, err, domain.ErrInvalidPin)
	assert.Len(t, e.Snapshot(), 1)
}

func TestApplyHighPersists(t *testing.T) {
	h := newHarness(t)

	a, err := h.engine.Apply(context.Background(), mustReq(t, 5, "high", 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 5, a.Pin)
	assert.Equal(t, "HIGH", a.Mode.Label())

	assert.Equal(t, domain.LevelHigh, h.level(t, 5))
	v, ok := h.record(5)
	require.True(t, ok)
	assert.Equal(t, "high", v)

	st, err := h.engine.Status(5)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, st.State)
	assert.Equal(t, "high", st.Mode)
	assert.Equal(t, []domain.EventType{domain.EventPinApplied}, h.bus.types())
}

func TestApplyEveryModeReadsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, pin := range domain.DefaultPinRange.Pins() {
		for _, mode := range []string{"high", "low"} {
			_, err := h.engine.Apply(ctx, mustReq(t, pin, mode, 0, 0))
			require.NoError(t, err)
			want := domain.LevelLow
			if mode == "high" {
				want = domain.LevelHigh
			}
			assert.Equal(t, want, h.level(t, pin), "gpio %d %s", pin, mode)
		}
	}
	for duty := 0; duty <= domain.MaxDuty; duty++ {
		mode := fmt.Sprintf("pwm%d", duty)
		_, err := h.engine.Apply(ctx, mustReq(t, 18, mode, 0, 0))
		require.NoError(t, err)
		got, ok := h.driver.Mode(18)
		require.True(t, ok)
		assert.Equal(t, domain.PWM(uint8(duty)), got)
		v, _ := h.record(18)
		assert.Equal(t, mode, v)
	}
}

func TestApplyRejectsInvalidPinWithoutSideEffects(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Apply(context.Background(), domain.OperationRequest{Pin: 40, Mode: domain.Digital(domain.LevelHigh)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidPin)
	assert.Empty(t, h.driver.Writes(), "no driver call")
	assert.Empty(t, h.store.Snapshot(), "no record")
	assert.Empty(t, h.bus.types())
}

func TestApplyInvalidModeFromParse(t *testing.T) {
	_, err := domain.NewOperationRequest(domain.DefaultPinRange, 5, "banana", 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestApplyIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Apply(ctx, mustReq(t, 4, "pwm77", 0, 0))
	require.NoError(t, err)
	first, _ := h.driver.Mode(4)
	rec1, _ := h.record(4)

	_, err = h.engine.Apply(ctx, mustReq(t, 4, "pwm77", 0, 0))
	require.NoError(t, err)
	second, _ := h.driver.Mode(4)
	rec2, _ := h.record(4)

	assert.Equal(t, first, second)
	assert.Equal(t, rec1, rec2)
	assert.Len(t, h.store.Snapshot(), 1)
}

func TestApplyDriverFailure(t *testing.T) {
	h := newHarness(t)
	h.driver.FailWrites(6, errors.New("pin locked"))

	_, err := h.engine.Apply(context.Background(), mustReq(t, 6, "high", 0, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDriverFailure)
	_, ok := h.record(6)
	assert.False(t, ok, "failed apply is not persisted")

	st, _ := h.engine.Status(6)
	assert.Equal(t, domain.StateIdle, st.State)
}

func TestApplyDriverFailureKeepsPendingSchedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Schedule(ctx, mustReq(t, 5, "high", time.Second, 0))
	require.NoError(t, err)
	h.driver.FailWrites(5, errors.New("pin locked"))

	_, err = h.engine.Apply(ctx, mustReq(t, 5, "low", 0, 0))
	require.ErrorIs(t, err, domain.ErrDriverFailure)

	st, _ := h.engine.Status(5)
	assert.Equal(t, domain.StatePendingScheduled, st.State)
	assert.Equal(t, "high", st.PendingMode)
	assert.Equal(t, 1, h.clock.Pending())

	h.driver.FailWrites(5, nil)
	h.clock.Advance(time.Second)
	assert.Equal(t, domain.LevelHigh, h.level(t, 5))
}

func TestScheduleDriverFailureKeepsRevert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Apply(ctx, mustReq(t, 7, "high", 0, time.Second))
	require.NoError(t, err)
	h.driver.FailWrites(7, errors.New("pin locked"))

	_, err = h.engine.Schedule(ctx, mustReq(t, 7, "pwm10", 0, 0))
	require.ErrorIs(t, err, domain.ErrDriverFailure)

	st, _ := h.engine.Status(7)
	assert.Equal(t, domain.StateActiveTimed, st.State)
	assert.Equal(t, "high", st.Mode)
	require.NotNil(t, st.RevertAt)

	h.driver.FailWrites(7, nil)
	h.clock.Advance(time.Second)
	assert.Equal(t, domain.LevelLow, h.level(t, 7))
	_, ok := h.record(7)
	assert.False(t, ok)
}

func TestApplyStoreFailureIsNotSurfaced(t *testing.T) {
	h := newHarness(t)
	h.store.FailPut(errors.New("nvs full"))

	a, err := h.engine.Apply(context.Background(), mustReq(t, 2, "high", 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, a.Pin)
	assert.Equal(t, domain.LevelHigh, h.level(t, 2))
	assert.Equal(t, uint64(1), h.engine.Stats().StoreFailures)
	assert.Equal(t, 1, h.bus.count(domain.EventStoreFailure))
}

func TestApplyWithDurationArmsRevert(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Apply(context.Background(), mustReq(t, 9, "high", 0, 300*time.Millisecond))
	require.NoError(t, err)
	st, _ := h.engine.Status(9)
	assert.Equal(t, domain.StateActiveTimed, st.State)
	require.NotNil(t, st.RevertAt)
	assert.Equal(t, epoch.Add(300*time.Millisecond), *st.RevertAt)

	h.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, domain.LevelLow, h.level(t, 9))
	_, ok := h.record(9)
	assert.False(t, ok)
}

func TestApplyBatchIndependentEntries(t *testing.T) {
	h := newHarness(t)

	res := h.engine.ApplyBatch(context.Background(), []domain.BatchEntry{
		{Pin: 1, Mode: "high"},
		{Pin: 40, Mode: "high"},
		{Pin: 2, Mode: "banana"},
		{Pin: 3, Mode: "pwm10"},
	})
	require.Len(t, res.Applied, 2)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.ErrorIs(t, res.Failures[0], domain.ErrInvalidPin)
	assert.Equal(t, 2, res.Failures[1].Index)
	assert.ErrorIs(t, res.Failures[1], domain.ErrInvalidMode)

	assert.Equal(t, domain.LevelHigh, h.level(t, 1))
	m, _ := h.driver.Mode(3)
	assert.Equal(t, domain.PWM(10), m)
	assert.Equal(t, map[int]string{1: "high", 3: "pwm10"}, h.store.Snapshot())

	err := res.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidPin)
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
	assert.Contains(t, err.Error(), "entry 1 (gpio 40): ")
	assert.Contains(t, err.Error(), "; entry 2 (gpio 2): ")
}

func TestApplyBatchAllGood(t *testing.T) {
	h := newHarness(t)
	res := h.engine.ApplyBatch(context.Background(), []domain.BatchEntry{{Pin: 1, Mode: "low"}})
	assert.NoError(t, res.Err())
	assert.Len(t, res.Applied, 1)
}

func TestSnapshotCoversRange(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Apply(context.Background(), mustReq(t, 0, "high", 0, 0))
	require.NoError(t, err)

	snap := h.engine.Snapshot()
	require.Len(t, snap, 34)
	assert.Equal(t, 0, snap[0].GPIO)
	assert.Equal(t, domain.StateActive, snap[0].State)
	assert.Equal(t, 33, snap[33].GPIO)
	assert.Equal(t, domain.StateIdle, snap[33].State)

	_, err = h.engine.Status(34)
	assert.ErrorIs(t, err, domain.ErrInvalidPin)
}

func TestSourceTaggedOnEvents(t *testing.T) {
	h := newHarness(t)
	ctx := WithSource(context.Background(), SourceRoutine)
	_, err := h.engine.Apply(ctx, mustReq(t, 3, "low", 0, 0))
	require.NoError(t, err)

	require.Len(t, h.bus.events, 1)
	assert.Contains(t, string(h.bus.events[0].Payload), `"source":"routine"`)
}
