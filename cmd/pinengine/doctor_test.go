package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinengine/internal/adapter/grpcapi"
	"pinengine/internal/infra/config"
	"pinengine/internal/usecase/node"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Store.Path = filepath.Join(t.TempDir(), "pinstate.db")
	cfg.HTTP.Addr = "127.0.0.1:0"
	return cfg
}

func TestCheckConfigFile(t *testing.T) {
	r := checkConfigFile("x.yaml", nil)(nil)
	assert.Equal(t, StatusPass, r.Status)

	r = checkConfigFile("x.yaml", errors.New("bad yaml"))(nil)
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "bad yaml")
}

func TestCheckStoreSQLite(t *testing.T) {
	r := checkStore(testConfig(t))
	assert.Equal(t, StatusPass, r.Status, r.Message)
	assert.Contains(t, r.Message, "0 persisted")
}

func TestCheckStoreUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "etcd"
	assert.Equal(t, StatusFail, checkStore(cfg).Status)
}

func TestCheckDriver(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, StatusPass, checkDriver(cfg).Status)

	cfg.Driver.Backend = "gpiod"
	assert.Equal(t, StatusFail, checkDriver(cfg).Status)
}

func TestCheckRoutines(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Routines = []config.RoutineConfig{{Name: "porch", Schedule: "0 19 * * *", GPIO: 4, State: "high"}}
	assert.Equal(t, StatusPass, checkRoutines(cfg).Status)

	cfg.Scheduler.Routines[0].GPIO = 99
	assert.Equal(t, StatusFail, checkRoutines(cfg).Status)
}

func TestCheckGatewayAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.Enabled = true
	assert.Equal(t, StatusWarn, checkGatewayAuth(cfg).Status)

	cfg.Gateway.Tokens = []config.TokenConfig{{Name: "ops", Token: "t"}}
	assert.Equal(t, StatusPass, checkGatewayAuth(cfg).Status)
}

func TestCheckOptionalFeatures(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, StatusPass, checkGRPC(cfg).Status)
	assert.Equal(t, StatusPass, checkMDNS(cfg).Status)

	cfg.GRPC.Enabled = true
	want := StatusWarn
	if grpcapi.Enabled {
		want = StatusPass
	}
	assert.Equal(t, want, checkGRPC(cfg).Status)

	cfg.MDNS.Enabled = true
	want = StatusWarn
	if node.Enabled {
		want = StatusPass
	}
	assert.Equal(t, want, checkMDNS(cfg).Status)
}

func TestRunChecksWithoutConfig(t *testing.T) {
	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile("missing.yaml", errors.New("nope"))},
		{Name: "State store", Fn: checkStore},
	}
	results := runChecks(nil, checks)
	require.Len(t, results, 2)
	assert.Equal(t, StatusFail, results[0].Status)
	assert.Equal(t, "State store", results[1].Name)
	assert.Contains(t, results[1].Message, "skipped")
}

func TestConfigPath(t *testing.T) {
	t.Setenv("PINENGINE_CONFIG", "")
	assert.Equal(t, "pinengine.yaml", configPath(""))
	assert.Equal(t, "a.yaml", configPath("a.yaml"))

	t.Setenv("PINENGINE_CONFIG", "/etc/pinengine.yaml")
	assert.Equal(t, "/etc/pinengine.yaml", configPath(""))
}
