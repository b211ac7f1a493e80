package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"pinengine/internal/adapter/gateway"
	"pinengine/internal/adapter/grpcapi"
	"pinengine/internal/adapter/httpapi"
	"pinengine/internal/adapter/journal"
	"pinengine/internal/infra/config"
	"pinengine/internal/infra/logger"
	"pinengine/internal/infra/tracer"
	"pinengine/internal/usecase/eventbus"
	"pinengine/internal/usecase/node"
	"pinengine/internal/usecase/pinengine"
	"pinengine/internal/usecase/scheduling"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgFlag := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// 1. Config
	cfg, err := config.Load(configPath(*cfgFlag))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Store & driver
	store, err := openStore(cfg.Store, logger.Component(log, "store"))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer store.Close()

	driver, err := openDriver(cfg.Driver, logger.Component(log, "driver"))
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	defer driver.Close()

	// 4. Event bus & engine
	bus := eventbus.New(logger.Component(log, "eventbus"))
	defer bus.Close()

	pins := pinRange(cfg.Pins)
	eng := pinengine.New(driver, store, pinengine.Options{
		Pins:   &pins,
		Bus:    bus,
		Logger: logger.Component(log, "engine"),
	})
	defer eng.Stop()

	deps := httpapi.Deps{
		Engine:        eng,
		Driver:        driver,
		DroppedEvents: bus.Dropped,
		Logger:        logger.Component(log, "http"),
	}

	// 5. Journal, opened before resume so replayed states are recorded
	if cfg.Journal.Enabled {
		j, err := openJournal(ctx, cfg.Journal, bus, log)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer j.Close()
		deps.Journal = j
	}

	// 6. Boot resume
	if cfg.Pins.Resume {
		report, err := eng.ResumeAll(ctx)
		if err != nil {
			// Unreadable records were skipped; keep serving.
			log.Error("resume incomplete", "error", err)
		}
		log.Info("pin states resumed", "applied", len(report.Applied), "skipped", len(report.Skipped))
	}

	// 7. Routines
	if cfg.Scheduler.Enabled {
		sched, err := startRoutines(ctx, cfg, eng, bus, log)
		if err != nil {
			return fmt.Errorf("routines: %w", err)
		}
		defer sched.Stop()
		deps.Routines = sched
	}

	// 8. Gateway & HTTP API
	if cfg.Gateway.Enabled {
		gw := gateway.NewServer(bus, gateway.NewStaticTokenAuth(cfg.Gateway.Tokens), logger.Component(log, "gateway"))
		gateway.RegisterEngineMethods(gw, eng)
		gw.Start()
		defer gw.Stop()
		deps.Gateway = gw
		deps.ClientCount = gw.ClientCount
	}

	api := httpapi.NewServer(cfg.HTTP, cfg.Gateway.Path, deps)
	if err := api.Start(ctx); err != nil {
		return fmt.Errorf("http: %w", err)
	}

	// 9. gRPC
	if cfg.GRPC.Enabled {
		if !grpcapi.Enabled {
			log.Warn("grpc enabled in config but binary built without the grpc tag")
		} else {
			gs := grpcapi.NewServer(eng, driver, logger.Component(log, "grpc"))
			if err := gs.Start(cfg.GRPC.Addr); err != nil {
				return fmt.Errorf("grpc: %w", err)
			}
			defer gs.Stop()
		}
	}

	// 10. mDNS
	if cfg.MDNS.Enabled {
		go advertise(ctx, cfg.MDNS, api.Addr(), eng, log)
	}

	log.Info("pinengine running", "version", version, "pins", pins.String(), "addr", api.Addr())
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := api.Stop(shutdownCtx); err != nil {
		log.Error("http shutdown error", "error", err)
	}
	return nil
}

// openJournal subscribes a journal to every bus event and runs its retention
// sweep hourly.
func openJournal(ctx context.Context, cfg config.JournalConfig, bus *eventbus.Bus, log *slog.Logger) (*journal.Journal, error) {
	maxSize, err := journal.ParseSize(cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(cfg.Path, journal.Retention{MaxAge: cfg.MaxAge, MaxSize: maxSize})
	if err != nil {
		return nil, err
	}

	jlog := logger.Component(log, "journal")
	onErr := func(err error) { jlog.Warn("journal write failed", "error", err) }
	unsub := bus.SubscribeAll(j.Handler(onErr))
	go func() {
		<-ctx.Done()
		unsub()
	}()
	go j.RunRetention(ctx, time.Hour, onErr)

	jlog.Info("journal opened", "path", cfg.Path)
	return j, nil
}

func startRoutines(ctx context.Context, cfg *config.Config, eng *pinengine.Engine, bus *eventbus.Bus, log *slog.Logger) (*scheduling.Scheduler, error) {
	routines, err := scheduling.RoutinesFromConfig(cfg.Scheduler.Routines, eng.Pins())
	if err != nil {
		return nil, err
	}
	sched := scheduling.NewScheduler(eng, bus, logger.Component(log, "scheduler"))
	for _, r := range routines {
		if err := sched.AddRoutine(r); err != nil {
			return nil, err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	return sched, nil
}

func advertise(ctx context.Context, cfg config.MDNSConfig, addr string, eng *pinengine.Engine, log *slog.Logger) {
	if !node.Enabled {
		log.Warn("mdns enabled in config but binary built without the mdns tag")
		return
	}
	svc, err := node.ServiceFromConfig(cfg, addr, eng.Pins(), version)
	if err != nil {
		log.Error("mdns service", "error", err)
		return
	}
	if err := node.New(logger.Component(log, "mdns")).Advertise(ctx, svc); err != nil {
		log.Error("mdns advertise failed", "error", err)
	}
}
