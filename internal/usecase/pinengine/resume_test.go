package pinengine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinengine/internal/domain"
)

func TestResumeAppliesOnceWithoutRevert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, 5, "pwm128"))
	putsBefore := h.store.Puts()

	report, err := h.engine.ResumeAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Applied, 1)
	assert.Equal(t, 5, report.Applied[0].Pin)
	assert.Empty(t, report.Skipped)

	writes := h.driver.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, domain.PWM(128), writes[0].Mode)
	assert.Equal(t, 0, h.clock.Pending(), "no revert armed")
	assert.Equal(t, putsBefore, h.store.Puts(), "record not rewritten")
	assert.Equal(t, map[int]string{5: "pwm128"}, h.store.Snapshot())

	st, _ := h.engine.Status(5)
	assert.Equal(t, domain.StateActive, st.State)
	assert.Equal(t, []domain.EventType{domain.EventPinApplied, domain.EventPinResumed}, h.bus.types())
}

func TestResumeAscendingAndSkipsBadRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, 20, "low"))
	require.NoError(t, h.store.Put(ctx, 3, "garbage"))
	require.NoError(t, h.store.Put(ctx, 1, "high"))
	require.NoError(t, h.store.Put(ctx, 40, "high")) // outside the range, never read

	report, err := h.engine.ResumeAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Applied, 2)
	assert.Equal(t, 1, report.Applied[0].Pin)
	assert.Equal(t, 20, report.Applied[1].Pin)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, 3, report.Skipped[0].Pin)
	assert.ErrorIs(t, report.Skipped[0].Err, domain.ErrInvalidMode)

	v, ok := h.record(3)
	assert.True(t, ok, "bad record left in place")
	assert.Equal(t, "garbage", v)
}

func TestResumeReadFailure(t *testing.T) {
	h := newHarness(t)
	h.store.FailGet(errors.New("nvs corrupt"))

	report, err := h.engine.ResumeAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreFailure)
	assert.Len(t, report.Skipped, 34)
	assert.Empty(t, h.driver.Writes())
}

func TestResumeHonoursCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.engine.ResumeAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
