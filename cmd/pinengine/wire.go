package main

import (
	"fmt"
	"log/slog"

	"pinengine/internal/adapter/pindriver"
	"pinengine/internal/adapter/statestore"
	"pinengine/internal/domain"
	"pinengine/internal/infra/config"
)

// openStore opens the configured state store, wrapped in a circuit breaker
// when enabled.
func openStore(cfg config.StoreConfig, log *slog.Logger) (domain.StateStore, error) {
	var store domain.StateStore
	switch cfg.Driver {
	case "memory":
		store = statestore.NewMemoryStore()
	case "", "sqlite":
		s, err := statestore.NewSQLiteStore(cfg.Path, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if cfg.Breaker.Enabled {
		store = statestore.NewBreaker(store, statestore.BreakerConfig{
			MaxFailures: uint32(cfg.Breaker.FailureThreshold),
			OpenTimeout: cfg.Breaker.OpenTimeout,
		}, log)
	}
	log.Info("state store opened", "driver", cfg.Driver, "namespace", cfg.Namespace)
	return store, nil
}

func openDriver(cfg config.DriverConfig, log *slog.Logger) (domain.PinDriver, error) {
	return pindriver.New(cfg.Backend, pindriver.Options{
		PinPrefix:      cfg.PinPrefix,
		PWMFrequencyHz: cfg.PWMFrequency,
		ADCMax:         cfg.ADCMax,
	}, log)
}

func pinRange(cfg config.PinsConfig) domain.PinRange {
	return domain.PinRange{Min: cfg.Min, Max: cfg.Max}
}
