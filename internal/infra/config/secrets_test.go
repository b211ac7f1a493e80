package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := EncryptValue("dashboard-token", "passphrase-123")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	decrypted, err := DecryptValue(encrypted, "passphrase-123")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if decrypted != "dashboard-token" {
		t.Errorf("got %q, want %q", decrypted, "dashboard-token")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptValue(encrypted, "wrong-pass"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptValueMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "deadbeef"},
		{"bad salt", "zz:00"},
		{"bad ciphertext", "00112233445566778899aabbccddeeff:zz"},
		{"too short", "00112233445566778899aabbccddeeff:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecryptValue(tt.input, "pass"); err == nil {
				t.Errorf("DecryptValue(%q) should fail", tt.input)
			}
		})
	}
}

func TestDecryptSecretsGatewayTokens(t *testing.T) {
	encrypted, err := EncryptValue("plain-token", "key")
	if err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	cfg.Gateway.Tokens = []TokenConfig{
		{Name: "ui", Token: encPrefix + encrypted},
		{Name: "cli", Token: "not-encrypted"},
	}
	if err := decryptSecrets(cfg, "key"); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}
	if cfg.Gateway.Tokens[0].Token != "plain-token" {
		t.Errorf("Tokens[0] = %q", cfg.Gateway.Tokens[0].Token)
	}
	if cfg.Gateway.Tokens[1].Token != "not-encrypted" {
		t.Errorf("plain tokens should be left alone, got %q", cfg.Gateway.Tokens[1].Token)
	}
}

func TestLoadWithConfigKey(t *testing.T) {
	encrypted, err := EncryptValue("ws-token", "load-key")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "pinengine.yaml")
	content := "gateway:\n  tokens:\n    - name: ui\n      token: \"enc:" + encrypted + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PINENGINE_CONFIG_KEY", "load-key")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Tokens[0].Token != "ws-token" {
		t.Errorf("Token = %q, want %q", cfg.Gateway.Tokens[0].Token, "ws-token")
	}
}
