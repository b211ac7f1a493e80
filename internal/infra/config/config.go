package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Store     StoreConfig     `yaml:"store"`
	Driver    DriverConfig    `yaml:"driver"`
	Pins      PinsConfig      `yaml:"pins"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	MDNS      MDNSConfig      `yaml:"mdns"`
	Journal   JournalConfig   `yaml:"journal"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// HTTPConfig holds the command surface listener settings.
type HTTPConfig struct {
	Addr              string          `yaml:"addr"`
	ReadHeaderTimeout time.Duration   `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration   `yaml:"write_timeout"`
	IdleTimeout       time.Duration   `yaml:"idle_timeout"`
	Dashboard         bool            `yaml:"dashboard"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	TrustedProxies    []string        `yaml:"trusted_proxies,omitempty"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled   bool `yaml:"enabled"`
	PerMinute int  `yaml:"per_minute"`
	Burst     int  `yaml:"burst"`
}

// GatewayConfig holds WebSocket event push settings. The gateway shares
// the HTTP listener and is mounted at Path.
type GatewayConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	Tokens  []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig holds a single gateway auth token.
type TokenConfig struct {
	Name  string `yaml:"name"`
	Token string `yaml:"token"` // may be "enc:..." when PINENGINE_CONFIG_KEY is set
}

// GRPCConfig holds the gRPC pin service settings. The service is only
// compiled in with the grpc build tag.
type GRPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StoreConfig selects and tunes the persistent pin state store.
type StoreConfig struct {
	Driver    string        `yaml:"driver"` // "sqlite" or "memory"
	Path      string        `yaml:"path"`
	Namespace string        `yaml:"namespace"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker around store I/O.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// DriverConfig selects the pin driver backend.
type DriverConfig struct {
	Backend      string `yaml:"backend"` // "sim" or "periph"
	PinPrefix    string `yaml:"pin_prefix"`
	PWMFrequency int    `yaml:"pwm_frequency_hz"`
	ADCMax       int    `yaml:"adc_max"`
}

// PinsConfig bounds the addressable pin range.
type PinsConfig struct {
	Min    int  `yaml:"min"`
	Max    int  `yaml:"max"`
	Resume bool `yaml:"resume"` // replay persisted states at boot
}

// SchedulerConfig holds recurring pin routine settings.
type SchedulerConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Routines []RoutineConfig `yaml:"routines"`
}

// RoutineConfig defines a recurring pin operation.
type RoutineConfig struct {
	Name     string        `yaml:"name"`
	Schedule string        `yaml:"schedule"` // cron expression or duration string
	GPIO     int           `yaml:"gpio"`
	State    string        `yaml:"state"`
	Delay    time.Duration `yaml:"delay,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
	OneShot  bool          `yaml:"one_shot,omitempty"` // fire once, then unregister
}

// MDNSConfig controls LAN service advertisement.
type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
	Domain   string `yaml:"domain"`
}

// JournalConfig controls the on-disk event journal.
type JournalConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	MaxAge  time.Duration `yaml:"max_age,omitempty"`
	MaxSize string        `yaml:"max_size,omitempty"` // e.g. "10MB"
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// defaultDataDir returns the persistent data directory under $HOME/.pinengine.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".pinengine")
}

// Defaults returns a Config matching the stock ESP32 firmware: port 8080,
// GPIO 0..33, namespace "gpio-states", 5 kHz PWM and a 12-bit ADC.
func Defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			Dashboard:         true,
			RateLimit: RateLimitConfig{
				Enabled:   true,
				PerMinute: 600,
				Burst:     60,
			},
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Path:    "/ws",
		},
		GRPC: GRPCConfig{
			Addr: ":9090",
		},
		Store: StoreConfig{
			Driver:    "sqlite",
			Path:      filepath.Join(defaultDataDir(), "pinstate.db"),
			Namespace: "gpio-states",
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
			},
		},
		Driver: DriverConfig{
			Backend:      "sim",
			PinPrefix:    "GPIO",
			PWMFrequency: 5000,
			ADCMax:       4095,
		},
		Pins: PinsConfig{
			Min:    0,
			Max:    33,
			Resume: true,
		},
		MDNS: MDNSConfig{
			Instance: "pinengine",
			Service:  "_pinengine._tcp",
			Domain:   "local.",
		},
		Journal: JournalConfig{
			Path:    filepath.Join(defaultDataDir(), "journal.jsonl"),
			MaxAge:  7 * 24 * time.Hour,
			MaxSize: "10MB",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env overrides, and validates.
// A missing file is not an error: defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("PINENGINE_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps PINENGINE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PINENGINE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("PINENGINE_HTTP_DASHBOARD"); v != "" {
		cfg.HTTP.Dashboard = v == "true"
	}
	if v := os.Getenv("PINENGINE_HTTP_TRUSTED_PROXIES"); v != "" {
		cfg.HTTP.TrustedProxies = splitAndTrim(v, ",")
	}
	if v := os.Getenv("PINENGINE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTP.RateLimit.PerMinute = n
		}
	}
	if v := os.Getenv("PINENGINE_GATEWAY_ENABLED"); v != "" {
		cfg.Gateway.Enabled = v == "true"
	}
	if v := os.Getenv("PINENGINE_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Tokens = append(cfg.Gateway.Tokens, TokenConfig{Name: "env", Token: v})
	}
	if v := os.Getenv("PINENGINE_GRPC_ENABLED"); v != "" {
		cfg.GRPC.Enabled = v == "true"
	}
	if v := os.Getenv("PINENGINE_GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
	if v := os.Getenv("PINENGINE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("PINENGINE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PINENGINE_DRIVER_BACKEND"); v != "" {
		cfg.Driver.Backend = v
	}
	if v := os.Getenv("PINENGINE_PINS_RESUME"); v != "" {
		cfg.Pins.Resume = v != "false"
	}
	if v := os.Getenv("PINENGINE_MDNS_ENABLED"); v == "true" {
		cfg.MDNS.Enabled = true
	}
	if v := os.Getenv("PINENGINE_JOURNAL_ENABLED"); v != "" {
		cfg.Journal.Enabled = v == "true"
	}
	if v := os.Getenv("PINENGINE_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("PINENGINE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("PINENGINE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("PINENGINE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("PINENGINE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validatePermissions rejects config files that group or others can write.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
