package service

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRenderUnit(t *testing.T) {
	cfg := Config{
		Name:       "pinengine",
		BinaryPath: "/usr/local/bin/pinengine",
		ConfigPath: "/etc/pinengine/pinengine.yaml",
		DataDir:    "/var/lib/pinengine",
		User:       "pinengine",
		Group:      "gpio",
	}

	content, err := RenderUnit(cfg)
	if err != nil {
		t.Fatalf("RenderUnit: %v", err)
	}

	checks := []string{
		"[Unit]",
		"Description=pinengine GPIO pin operation engine",
		"ExecStart=/usr/local/bin/pinengine serve -config /etc/pinengine/pinengine.yaml",
		"User=pinengine",
		"SupplementaryGroups=gpio",
		"Environment=PINENGINE_STORE_PATH=/var/lib/pinengine/pinstate.db",
		"WantedBy=multi-user.target",
	}
	for _, check := range checks {
		if !strings.Contains(content, check) {
			t.Errorf("unit missing %q:\n%s", check, content)
		}
	}
}

func TestRenderUnitWithoutGroup(t *testing.T) {
	content, err := RenderUnit(Config{Name: "p", BinaryPath: "/bin/p", User: "root"})
	if err != nil {
		t.Fatalf("RenderUnit: %v", err)
	}
	if strings.Contains(content, "SupplementaryGroups") {
		t.Errorf("unexpected SupplementaryGroups:\n%s", content)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "pinengine" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.BinaryPath == "" {
		t.Error("BinaryPath should not be empty")
	}
	if cfg.Group != "gpio" {
		t.Errorf("Group = %q", cfg.Group)
	}
}

func TestInstallUnsupportedPlatform(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Skip("skipping on supported platform")
	}
	err := Install(DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "unsupported platform") {
		t.Errorf("err = %v, want unsupported platform", err)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty name")
	}

	cfg = Config{Name: "test"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty binary path")
	}

	cfg = Config{Name: "test", BinaryPath: "/nonexistent/binary"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-existent binary")
	}

	exe, err := os.Executable()
	if err != nil {
		t.Skipf("cannot determine executable: %v", err)
	}
	cfg = Config{Name: "test", BinaryPath: exe}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestConfigValidateNotExecutable(t *testing.T) {
	notExec := filepath.Join(t.TempDir(), "notexec")
	if err := os.WriteFile(notExec, []byte("#!/bin/sh"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Config{Name: "test", BinaryPath: notExec}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "not executable") {
		t.Errorf("err = %v, want not executable", err)
	}
}

func TestParseMainPID(t *testing.T) {
	tests := map[string]int{
		"MainPID=1234\n": 1234,
		"MainPID=0":      0,
		"garbage":        0,
	}
	for in, want := range tests {
		if got := parseMainPID(in); got != want {
			t.Errorf("parseMainPID(%q) = %d, want %d", in, got, want)
		}
	}
}
