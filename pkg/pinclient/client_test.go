package pinclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinengine/internal/adapter/httpapi"
	"pinengine/internal/adapter/pindriver"
	"pinengine/internal/adapter/statestore"
	"pinengine/internal/infra/clock"
	"pinengine/internal/infra/config"
	"pinengine/internal/infra/logger"
	"pinengine/internal/usecase/pinengine"
)

type testEnv struct {
	client *Client
	clock  *clock.Virtual
	driver *pindriver.Sim
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:  clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		driver: pindriver.NewSim(pindriver.Options{}),
	}
	eng := pinengine.New(env.driver, statestore.NewMemoryStore(), pinengine.Options{
		Clock:  env.clock,
		Logger: logger.Discard(),
	})
	t.Cleanup(eng.Stop)

	api := httpapi.NewServer(config.HTTPConfig{}, "", httpapi.Deps{
		Engine: eng,
		Driver: env.driver,
		Logger: logger.Discard(),
	})
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)

	c, err := New(ts.URL+"/", WithLogger(logger.Discard()), WithTimeout(2*time.Second))
	require.NoError(t, err)
	env.client = c
	return env
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://device")
	assert.Error(t, err)
	_, err = New("://")
	assert.Error(t, err)
}

func TestSetAndRead(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	res, err := env.client.SetGPIO(ctx, 5, "pwm64")
	require.NoError(t, err)
	assert.Equal(t, "PWM", res.State)
	require.NotNil(t, res.PWMValue)
	assert.Equal(t, 64, *res.PWMValue)

	_, err = env.client.SetGPIO(ctx, 6, "high")
	require.NoError(t, err)
	state, err := env.client.ReadGPIO(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, "HIGH", state)

	env.driver.SetAnalog(33, 2048)
	v, err := env.client.ReadADC(ctx, 33)
	require.NoError(t, err)
	assert.Equal(t, 2048, v)
}

func TestAPIError(t *testing.T) {
	env := newEnv(t)

	_, err := env.client.SetGPIO(context.Background(), 40, "high")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "Invalid GPIO pin", apiErr.Message)
}

func TestBatchPartial(t *testing.T) {
	env := newEnv(t)

	err := env.client.Batch(context.Background(), []Operation{{GPIO: 1, State: "high"}, {GPIO: 2, State: "bogus"}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "entry 1 (gpio 2)")

	mode, ok := env.driver.Mode(1)
	require.True(t, ok)
	assert.Equal(t, "high", mode.String())
}

func TestScheduleAndPins(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	require.NoError(t, env.client.Schedule(ctx, 9, "high", time.Second, 0))
	pins, err := env.client.Pins(ctx)
	require.NoError(t, err)
	require.Len(t, pins, 34)
	assert.Equal(t, "pending", pins[9].State)
	assert.Equal(t, "high", pins[9].PendingMode)

	env.clock.Advance(time.Second)
	pins, err = env.client.Pins(ctx)
	require.NoError(t, err)
	assert.Equal(t, "active", pins[9].State)
}

func TestBlinkAndStatus(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	require.NoError(t, env.client.Blink(ctx, 2, 250*time.Millisecond))
	require.NoError(t, env.client.Blink(ctx, 2, 0))

	st, err := env.client.Status(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, st.Uptime, int64(0))
	assert.Zero(t, st.ConnectedClients)
}
