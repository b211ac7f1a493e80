// Package service installs pinengine as a systemd unit on the Linux host
// that owns the GPIO header.
package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"
)

const unitDir = "/etc/systemd/system"

// Config holds parameters for unit installation.
type Config struct {
	Name       string
	BinaryPath string
	ConfigPath string
	DataDir    string
	User       string
	// Group is added as a supplementary group so the service can open
	// /dev/gpiomem without running as root.
	Group string
}

// Status holds the state of an installed unit.
type Status struct {
	Running bool
	PID     int
}

// DefaultConfig returns a Config with auto-detected defaults.
func DefaultConfig() Config {
	binary, _ := os.Executable()
	if binary == "" {
		binary = "/usr/local/bin/pinengine"
	}
	return Config{
		Name:       "pinengine",
		BinaryPath: binary,
		ConfigPath: "/etc/pinengine/pinengine.yaml",
		DataDir:    "/var/lib/pinengine",
		User:       "pinengine",
		Group:      "gpio",
	}
}

// Validate checks the Config for correctness.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.BinaryPath == "" {
		return fmt.Errorf("binary path is required")
	}
	info, err := os.Stat(c.BinaryPath)
	if err != nil {
		return fmt.Errorf("binary %q: %w", c.BinaryPath, err)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("binary %q is not executable", c.BinaryPath)
	}
	return nil
}

const unitTemplate = `[Unit]
Description={{.Name}} GPIO pin operation engine
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} serve -config {{.ConfigPath}}
User={{.User}}
{{- if .Group}}
SupplementaryGroups={{.Group}}
{{- end}}
StateDirectory={{.Name}}
Environment=PINENGINE_STORE_PATH={{.DataDir}}/pinstate.db
Restart=on-failure
RestartSec=2

[Install]
WantedBy=multi-user.target
`

// RenderUnit renders the systemd unit file content.
func RenderUnit(cfg Config) (string, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func requireLinux() error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return nil
}

// Install writes the unit, then enables and starts it.
func Install(cfg Config) error {
	if err := requireLinux(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	content, err := RenderUnit(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	unitPath := filepath.Join(unitDir, cfg.Name+".service")
	if err := os.WriteFile(unitPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}

	for _, args := range [][]string{
		{"systemctl", "daemon-reload"},
		{"systemctl", "enable", cfg.Name},
		{"systemctl", "start", cfg.Name},
	} {
		if out, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
			return fmt.Errorf("%s: %s: %w", strings.Join(args, " "), out, err)
		}
	}
	return nil
}

// Uninstall stops, disables and removes the unit. Persisted pin states in
// DataDir are left alone.
func Uninstall(name string) error {
	if err := requireLinux(); err != nil {
		return err
	}
	exec.Command("systemctl", "stop", name).Run()    // best effort
	exec.Command("systemctl", "disable", name).Run() // best effort

	if err := os.Remove(filepath.Join(unitDir, name+".service")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	exec.Command("systemctl", "daemon-reload").Run()
	return nil
}

// Query reports whether the unit is active and its main PID.
func Query(name string) (*Status, error) {
	if err := requireLinux(); err != nil {
		return nil, err
	}
	out, _ := exec.Command("systemctl", "is-active", name).Output()
	st := &Status{Running: strings.TrimSpace(string(out)) == "active"}
	if !st.Running {
		return st, nil
	}
	if pidOut, err := exec.Command("systemctl", "show", "--property=MainPID", name).Output(); err == nil {
		st.PID = parseMainPID(string(pidOut))
	}
	return st, nil
}

func parseMainPID(s string) int {
	_, v, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok {
		return 0
	}
	pid, _ := strconv.Atoi(v)
	return pid
}
