package main

import (
	"context"
	"flag"
	"fmt"

	"pinengine/internal/infra/config"
	"pinengine/internal/infra/logger"
	"pinengine/internal/usecase/pinengine"
)

// runResume lists the persisted pin states and, with -apply, replays them
// through the engine once. The driver is not closed after an apply so the
// outputs stay latched when the process exits.
func runResume(args []string) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	cfgFlag := fs.String("config", "", "config file path")
	apply := fs.Bool("apply", false, "drive the pins instead of only listing records")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath(*cfgFlag))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	store, err := openStore(cfg.Store, logger.Component(log, "store"))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if !*apply {
		n := 0
		err := store.ForEach(ctx, func(pin int, mode string) error {
			fmt.Printf("  gpio %-3d %s\n", pin, mode)
			n++
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("%d persisted pin state(s) in namespace %q\n", n, cfg.Store.Namespace)
		return nil
	}

	driver, err := openDriver(cfg.Driver, logger.Component(log, "driver"))
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	pins := pinRange(cfg.Pins)
	eng := pinengine.New(driver, store, pinengine.Options{
		Pins:   &pins,
		Logger: logger.Component(log, "engine"),
	})
	defer eng.Stop()

	report, err := eng.ResumeAll(ctx)
	for _, a := range report.Applied {
		fmt.Printf("  applied gpio %-3d %s\n", a.Pin, a.Mode)
	}
	for _, s := range report.Skipped {
		fmt.Printf("  skipped gpio %-3d %q: %v\n", s.Pin, s.Mode, s.Err)
	}
	return err
}
