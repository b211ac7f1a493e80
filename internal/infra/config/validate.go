package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateHTTP(cfg, ve)
	validateGateway(cfg, ve)
	validateGRPC(cfg, ve)
	validateStore(cfg, ve)
	validateDriver(cfg, ve)
	validatePins(cfg, ve)
	validateScheduler(cfg, ve)
	validateMDNS(cfg, ve)
	validateJournal(cfg, ve)
	validateObservability(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateHTTP(cfg *Config, ve *ValidationError) {
	if cfg.HTTP.Addr == "" {
		ve.Add("http.addr is required")
	} else if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		ve.Add("http.addr %q is not a valid host:port", cfg.HTTP.Addr)
	}
	if cfg.HTTP.RateLimit.Enabled {
		if cfg.HTTP.RateLimit.PerMinute <= 0 {
			ve.Add("http.rate_limit.per_minute must be > 0 when rate limiting is enabled")
		}
		if cfg.HTTP.RateLimit.Burst <= 0 {
			ve.Add("http.rate_limit.burst must be > 0 when rate limiting is enabled")
		}
	}
	for i, p := range cfg.HTTP.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			ve.Add("http.trusted_proxies[%d] %q is not an IP or CIDR", i, p)
		}
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if !cfg.Gateway.Enabled {
		return
	}
	if !strings.HasPrefix(cfg.Gateway.Path, "/") {
		ve.Add("gateway.path %q must start with /", cfg.Gateway.Path)
	}
	for i, tok := range cfg.Gateway.Tokens {
		if tok.Token == "" {
			ve.Add("gateway.tokens[%d].token must not be empty", i)
		}
	}
}

var validStoreDrivers = map[string]bool{"sqlite": true, "memory": true}

func validateGRPC(cfg *Config, ve *ValidationError) {
	if !cfg.GRPC.Enabled {
		return
	}
	if cfg.GRPC.Addr == "" {
		ve.Add("grpc.addr is required when grpc is enabled")
	} else if cfg.GRPC.Addr == cfg.HTTP.Addr {
		ve.Add("grpc.addr %q must differ from http.addr", cfg.GRPC.Addr)
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	if !validStoreDrivers[cfg.Store.Driver] {
		ve.Add("store.driver %q is invalid (want: sqlite, memory)", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.Path == "" {
		ve.Add("store.path is required for the sqlite driver")
	}
	if cfg.Store.Namespace == "" {
		ve.Add("store.namespace must not be empty")
	}
	if cfg.Store.Breaker.Enabled {
		if cfg.Store.Breaker.FailureThreshold <= 0 {
			ve.Add("store.breaker.failure_threshold must be > 0")
		}
		if cfg.Store.Breaker.OpenTimeout <= 0 {
			ve.Add("store.breaker.open_timeout must be > 0")
		}
	}
}

var validDriverBackends = map[string]bool{"sim": true, "periph": true}

func validateDriver(cfg *Config, ve *ValidationError) {
	if !validDriverBackends[cfg.Driver.Backend] {
		ve.Add("driver.backend %q is invalid (want: sim, periph)", cfg.Driver.Backend)
	}
	if cfg.Driver.PWMFrequency <= 0 {
		ve.Add("driver.pwm_frequency_hz must be > 0")
	}
	if cfg.Driver.ADCMax <= 0 {
		ve.Add("driver.adc_max must be > 0")
	}
}

func validatePins(cfg *Config, ve *ValidationError) {
	if cfg.Pins.Min < 0 {
		ve.Add("pins.min must be >= 0")
	}
	if cfg.Pins.Max < cfg.Pins.Min {
		ve.Add("pins.max (%d) must be >= pins.min (%d)", cfg.Pins.Max, cfg.Pins.Min)
	}
}

func validateScheduler(cfg *Config, ve *ValidationError) {
	if !cfg.Scheduler.Enabled {
		return
	}
	seen := make(map[string]bool)
	for i, r := range cfg.Scheduler.Routines {
		if r.Name == "" {
			ve.Add("scheduler.routines[%d].name is required", i)
		} else if seen[r.Name] {
			ve.Add("scheduler.routines[%d].name %q is duplicated", i, r.Name)
		}
		seen[r.Name] = true
		if r.Schedule == "" {
			ve.Add("scheduler.routines[%d].schedule is required", i)
		} else if err := checkSchedule(r.Schedule); err != nil {
			ve.Add("scheduler.routines[%d].schedule %q: %v", i, r.Schedule, err)
		}
		if r.State == "" {
			ve.Add("scheduler.routines[%d].state is required", i)
		}
		if r.GPIO < cfg.Pins.Min || r.GPIO > cfg.Pins.Max {
			ve.Add("scheduler.routines[%d].gpio %d is outside pins range %d..%d", i, r.GPIO, cfg.Pins.Min, cfg.Pins.Max)
		}
		if r.Delay < 0 || r.Duration < 0 {
			ve.Add("scheduler.routines[%d] delay and duration must be >= 0", i)
		}
	}
}

// checkSchedule accepts a five-field cron expression, a descriptor such as
// "@every 1h", or a positive Go duration.
func checkSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err == nil {
		return nil
	}
	d, err := time.ParseDuration(schedule)
	if err != nil {
		return fmt.Errorf("not a cron expression or duration")
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	return nil
}

func validateMDNS(cfg *Config, ve *ValidationError) {
	if !cfg.MDNS.Enabled {
		return
	}
	if cfg.MDNS.Instance == "" {
		ve.Add("mdns.instance is required when mdns is enabled")
	}
	if !strings.HasPrefix(cfg.MDNS.Service, "_") {
		ve.Add("mdns.service %q must look like _name._tcp", cfg.MDNS.Service)
	}
}

func validateJournal(cfg *Config, ve *ValidationError) {
	if !cfg.Journal.Enabled {
		return
	}
	if cfg.Journal.Path == "" {
		ve.Add("journal.path is required when the journal is enabled")
	}
	if cfg.Journal.MaxAge < 0 {
		ve.Add("journal.max_age must not be negative")
	}
}

var validLogFormats = map[string]bool{"json": true, "text": true, "": true}

var validExporters = map[string]bool{"noop": true, "stdout": true, "": true}

func validateObservability(cfg *Config, ve *ValidationError) {
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is invalid (want: json, text)", cfg.Logger.Format)
	}
	if cfg.Tracer.Enabled && !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
}
