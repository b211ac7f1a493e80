package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"strings"
	"time"

	"pinengine/internal/adapter/grpcapi"
	"pinengine/internal/infra/config"
	"pinengine/internal/infra/logger"
	"pinengine/internal/usecase/node"
	"pinengine/internal/usecase/scheduling"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	cfgFlag := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfgPath := configPath(*cfgFlag)
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "State store", Fn: checkStore},
		{Name: "Pin driver", Fn: checkDriver},
		{Name: "Routines", Fn: checkRoutines},
		{Name: "Listen address", Fn: checkListen},
		{Name: "Gateway auth", Fn: checkGatewayAuth},
		{Name: "gRPC", Fn: checkGRPC},
		{Name: "mDNS", Fn: checkMDNS},
	}

	fmt.Println("pinengine doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	results := runChecks(cfg, checks)
	var pass, warn, fail int
	for _, r := range results {
		fmt.Printf("  [%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Fix != "" {
			fmt.Printf("      Fix: %s\n", r.Fix)
		}
		switch r.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)
	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

// runChecks runs every check. A nil cfg fails every check after the first,
// since they all need a parsed config.
func runChecks(cfg *config.Config, checks []Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for i, c := range checks {
		var r CheckResult
		if cfg == nil && i > 0 {
			r = CheckResult{Status: StatusFail, Message: "skipped: config did not load"}
		} else {
			r = c.Fn(cfg)
		}
		r.Name = c.Name
		results = append(results, r)
	}
	return results
}

func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check " + cfgPath + " syntax and permissions (0600 or 0644)",
			}
		}
		return CheckResult{Status: StatusPass, Message: "config loaded from " + cfgPath}
	}
}

func checkStore(cfg *config.Config) CheckResult {
	store, err := openStore(cfg.Store, logger.Discard())
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Check store.path is writable",
		}
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n := 0
	if err := store.ForEach(ctx, func(int, string) error { n++; return nil }); err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s store, %d persisted pin state(s) in %q", cfg.Store.Driver, n, cfg.Store.Namespace),
	}
}

func checkDriver(cfg *config.Config) CheckResult {
	drv, err := openDriver(cfg.Driver, logger.Discard())
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error(), Fix: "Set driver.backend to sim or periph"}
	}
	defer drv.Close()

	if cfg.Driver.Backend == "periph" {
		if _, err := drv.ReadDigital(cfg.Pins.Min); err != nil {
			return CheckResult{Status: StatusWarn, Message: fmt.Sprintf("periph read gpio %d: %v", cfg.Pins.Min, err)}
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s backend, gpio %s", cfg.Driver.Backend, pinRange(cfg.Pins)),
	}
}

func checkRoutines(cfg *config.Config) CheckResult {
	if !cfg.Scheduler.Enabled {
		return CheckResult{Status: StatusPass, Message: "scheduler disabled"}
	}
	routines, err := scheduling.RoutinesFromConfig(cfg.Scheduler.Routines, pinRange(cfg.Pins))
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%d routine(s) valid", len(routines))}
}

func checkListen(cfg *config.Config) CheckResult {
	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s: %v", cfg.HTTP.Addr, err),
			Fix:     "Another process may already be serving; stop it or change http.addr",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: cfg.HTTP.Addr + " is free"}
}

func checkGatewayAuth(cfg *config.Config) CheckResult {
	if !cfg.Gateway.Enabled {
		return CheckResult{Status: StatusPass, Message: "gateway disabled"}
	}
	if len(cfg.Gateway.Tokens) == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "gateway accepts unauthenticated clients",
			Fix:     "Add gateway.tokens or set PINENGINE_GATEWAY_TOKEN",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%d token(s) configured", len(cfg.Gateway.Tokens))}
}

func checkMDNS(cfg *config.Config) CheckResult {
	switch {
	case !cfg.MDNS.Enabled:
		return CheckResult{Status: StatusPass, Message: "disabled"}
	case !node.Enabled:
		return CheckResult{
			Status:  StatusWarn,
			Message: "enabled in config but not compiled in",
			Fix:     "Rebuild with -tags mdns",
		}
	default:
		return CheckResult{Status: StatusPass, Message: cfg.MDNS.Service + " on " + cfg.MDNS.Domain}
	}
}

func checkGRPC(cfg *config.Config) CheckResult {
	switch {
	case !cfg.GRPC.Enabled:
		return CheckResult{Status: StatusPass, Message: "disabled"}
	case !grpcapi.Enabled:
		return CheckResult{
			Status:  StatusWarn,
			Message: "enabled in config but not compiled in",
			Fix:     "Rebuild with -tags grpc",
		}
	default:
		return CheckResult{Status: StatusPass, Message: "PinService on " + cfg.GRPC.Addr}
	}
}
