package node

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinengine/internal/domain"
	"pinengine/internal/infra/config"
)

func TestServiceFromConfig(t *testing.T) {
	cfg := config.Defaults().MDNS
	svc, err := ServiceFromConfig(cfg, ":8080", domain.DefaultPinRange, "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, 8080, svc.Port)
	assert.Equal(t, "_pinengine._tcp", svc.Type)
	assert.Equal(t, []string{"pins=0-33", "version=1.2.0"}, svc.TXT())

	_, err = ServiceFromConfig(cfg, "nope", domain.DefaultPinRange, "")
	assert.Error(t, err)
	_, err = ServiceFromConfig(cfg, ":http", domain.DefaultPinRange, "")
	assert.Error(t, err)
}

func TestTXTOmitsEmptyVersion(t *testing.T) {
	svc := Service{Pins: domain.PinRange{Min: 2, Max: 5}}
	assert.Equal(t, []string{"pins=2-5"}, svc.TXT())
}

func TestParseTXTRecords(t *testing.T) {
	m := parseTXTRecords([]string{"pins=0-33", "version=1", "junk", "k=v=w"})
	assert.Equal(t, "0-33", m["pins"])
	assert.Equal(t, "1", m["version"])
	assert.Equal(t, "v=w", m["k"])
	_, ok := m["junk"]
	assert.False(t, ok)
}

func TestNewNode(t *testing.T) {
	n := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NotNil(t, n)
	if !Enabled {
		err := n.Advertise(context.Background(), Service{})
		assert.Equal(t, domain.CodeMDNSDisabled, domain.ErrorCodeOf(err))
	}
}
