package pindriver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinengine/internal/domain"
	"pinengine/internal/infra/logger"
)

func TestSimDigitalRoundTrip(t *testing.T) {
	s := NewSim(Options{})

	lvl, err := s.ReadDigital(4)
	require.NoError(t, err)
	assert.Equal(t, domain.LevelLow, lvl, "untouched pin reads LOW")

	require.NoError(t, s.WriteDigital(4, domain.LevelHigh))
	lvl, err = s.ReadDigital(4)
	require.NoError(t, err)
	assert.Equal(t, domain.LevelHigh, lvl)

	m, ok := s.Mode(4)
	require.True(t, ok)
	assert.Equal(t, "high", m.String())
}

func TestSimPWMReadsAsThreshold(t *testing.T) {
	s := NewSim(Options{})

	require.NoError(t, s.WritePWM(5, 127))
	lvl, _ := s.ReadDigital(5)
	assert.Equal(t, domain.LevelLow, lvl)

	require.NoError(t, s.WritePWM(5, 128))
	lvl, _ = s.ReadDigital(5)
	assert.Equal(t, domain.LevelHigh, lvl)
}

func TestSimAnalog(t *testing.T) {
	s := NewSim(Options{ADCMax: 4095})

	v, err := s.ReadAnalog(34)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, s.WriteDigital(2, domain.LevelHigh))
	v, _ = s.ReadAnalog(2)
	assert.Equal(t, 4095, v)

	require.NoError(t, s.WritePWM(3, 255))
	v, _ = s.ReadAnalog(3)
	assert.Equal(t, 4095, v)

	s.SetAnalog(2, 1234)
	v, _ = s.ReadAnalog(2)
	assert.Equal(t, 1234, v, "override wins over output")
}

func TestSimFailWrites(t *testing.T) {
	s := NewSim(Options{})
	boom := errors.New("short circuit")
	s.FailWrites(7, boom)

	err := s.WriteDigital(7, domain.LevelHigh)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDriverFailure)
	assert.Equal(t, domain.CodeDriverFailure, domain.ErrorCodeOf(err))
	assert.Empty(t, s.Writes())

	s.FailWrites(7, nil)
	require.NoError(t, s.WritePWM(7, 10))
	assert.Equal(t, []Write{{Pin: 7, Mode: domain.PWM(10)}}, s.Writes())
}

func TestSimFailReads(t *testing.T) {
	s := NewSim(Options{})
	require.NoError(t, s.WriteDigital(3, domain.LevelHigh))
	s.FailReads(3, errors.New("floating input"))

	_, err := s.ReadDigital(3)
	assert.ErrorIs(t, err, domain.ErrDriverFailure)
	require.NoError(t, s.WriteDigital(3, domain.LevelLow), "writes are unaffected")

	s.FailReads(3, nil)
	lvl, err := s.ReadDigital(3)
	require.NoError(t, err)
	assert.Equal(t, domain.LevelLow, lvl)
}

func TestSimWritesHistoryOrder(t *testing.T) {
	s := NewSim(Options{})
	require.NoError(t, s.WriteDigital(1, domain.LevelHigh))
	require.NoError(t, s.WriteDigital(1, domain.LevelLow))
	require.NoError(t, s.WritePWM(2, 64))

	got := s.Writes()
	require.Len(t, got, 3)
	assert.Equal(t, domain.Digital(domain.LevelHigh), got[0].Mode)
	assert.Equal(t, domain.Digital(domain.LevelLow), got[1].Mode)
	assert.Equal(t, 2, got[2].Pin)
}

func TestNewBackendSelection(t *testing.T) {
	d, err := New("sim", Options{}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &Sim{}, d)

	_, err = New("relay-board", Options{}, logger.Discard())
	assert.Error(t, err)
}

func TestNewPeriphFallsBackWithoutHardware(t *testing.T) {
	// Without the edge tag (or on a host with no GPIO) the simulator is used.
	d, err := New("periph", Options{}, logger.Discard())
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NoError(t, d.Close())
}
