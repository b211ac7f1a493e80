package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinStateJSON(t *testing.T) {
	for _, st := range []PinState{StateIdle, StatePendingScheduled, StateActive, StateActiveTimed} {
		raw, err := json.Marshal(PinStatus{GPIO: 1, State: st})
		require.NoError(t, err)

		var got PinStatus
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, st, got.State, string(raw))
	}
}

func TestPinStateUnmarshalUnknown(t *testing.T) {
	var st PinState
	err := st.UnmarshalText([]byte("sleeping"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
