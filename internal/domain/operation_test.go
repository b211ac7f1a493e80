package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOperationRequest(t *testing.T) {
	req, err := NewOperationRequest(DefaultPinRange, 5, "pwm128", time.Second, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 5, req.Pin)
	assert.Equal(t, PWM(128), req.Mode)
	assert.Equal(t, time.Second, req.Delay)
	assert.Equal(t, 500*time.Millisecond, req.Duration)
}

func TestNewOperationRequestErrors(t *testing.T) {
	tests := []struct {
		name     string
		pin      int
		mode     string
		delay    time.Duration
		duration time.Duration
		want     error
	}{
		{"pin out of range", 40, "high", 0, 0, ErrInvalidPin},
		{"negative pin", -1, "high", 0, 0, ErrInvalidPin},
		{"bad mode", 5, "banana", 0, 0, ErrInvalidMode},
		{"pin checked before mode", 99, "banana", 0, 0, ErrInvalidPin},
		{"negative delay", 5, "high", -time.Second, 0, ErrInvalidInput},
		{"negative duration", 5, "low", 0, -time.Second, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOperationRequest(DefaultPinRange, tt.pin, tt.mode, tt.delay, tt.duration)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestMillis(t *testing.T) {
	d, err := Millis("delay", 1500)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = Millis("delay", MaxMillis)
	require.NoError(t, err)
	assert.Positive(t, d)

	for _, ms := range []int64{-1, MaxMillis + 1, math.MaxInt64} {
		_, err := Millis("delay", ms)
		assert.ErrorIs(t, err, ErrInvalidInput, "ms=%d", ms)
	}
}

func TestOperationRequestValidateCatchesCorruptMode(t *testing.T) {
	req := OperationRequest{Pin: 3, Mode: PinMode{Kind: ModeKind(9)}}
	assert.True(t, errors.Is(req.Validate(DefaultPinRange), ErrInvalidMode))

	req = OperationRequest{Pin: 3, Mode: PinMode{Kind: ModeDigital, Level: Level(7)}}
	assert.True(t, errors.Is(req.Validate(DefaultPinRange), ErrInvalidMode))
}

func TestBatchFailureError(t *testing.T) {
	f := BatchFailure{Index: 2, Pin: 40, Err: ErrInvalidPin}
	assert.Equal(t, "entry 2 (gpio 40): invalid gpio pin", f.Error())
	assert.True(t, errors.Is(f, ErrInvalidPin))
}

func TestPinStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "pending", StatePendingScheduled.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "active_timed", StateActiveTimed.String())

	b, err := StateActiveTimed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "active_timed", string(b))
}
