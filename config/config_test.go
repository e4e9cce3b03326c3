package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfigAndResolveRelativePaths(t *testing.T) {
	tmp := t.TempDir()
	keyPath := filepath.Join(tmp, "tag.key")
	if err := os.WriteFile(keyPath, []byte("super_secure_key\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	cfgPath := writeConfig(t, tmp, `
reader:
  backend: pcsc
  device: "ACS ACR122U PICC Interface"
  poll_timeout: 5s
  poll_interval: 100ms
auth:
  mac_size: 8
  key_file: "tag.key"
server:
  port: 19090
  api_secret: "hunter2"
  mdns: false
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Auth.KeyFile != keyPath {
		t.Fatalf("expected resolved key path %q, got %q", keyPath, cfg.Auth.KeyFile)
	}
	if cfg.Reader.Backend != BackendPCSC {
		t.Fatalf("expected backend pcsc, got %q", cfg.Reader.Backend)
	}
	if cfg.ReaderPollTimeout() != 5*time.Second || cfg.Reader.PollInterval != 100*time.Millisecond {
		t.Fatalf("unexpected poll settings: %v / %v", cfg.ReaderPollTimeout(), cfg.Reader.PollInterval)
	}
	if cfg.Auth.MACSize != 8 {
		t.Fatalf("expected mac_size 8, got %d", cfg.Auth.MACSize)
	}
	if cfg.Server.Port != 19090 || cfg.Server.APISecret != "hunter2" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.MDNSEnabled() {
		t.Fatal("expected mdns to be disabled")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "reader:\n  device: \"\"\n")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Reader.Backend != BackendAuto {
		t.Fatalf("expected default backend auto, got %q", cfg.Reader.Backend)
	}
	if cfg.Auth.MACSize != 4 {
		t.Fatalf("expected default mac_size 4, got %d", cfg.Auth.MACSize)
	}
	if cfg.Auth.KeyEnv != DefaultKeyEnv {
		t.Fatalf("expected default key env, got %q", cfg.Auth.KeyEnv)
	}
	if cfg.Server.Port != DefaultPort {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
	if !cfg.MDNSEnabled() {
		t.Fatal("expected mdns enabled by default")
	}
	if cfg.ReaderPollTimeout() != DefaultPollTimeout {
		t.Fatalf("expected default poll timeout, got %v", cfg.ReaderPollTimeout())
	}
}

func TestLoadKeepsZeroPollTimeout(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "reader:\n  poll_timeout: 0s\n")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Reader.PollTimeout == nil {
		t.Fatal("expected poll_timeout to be set")
	}
	if got := cfg.ReaderPollTimeout(); got != 0 {
		t.Fatalf("poll_timeout: 0s became %v, want 0 (single poll)", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", "reader:\n  nope: 1\n", "field nope not found"},
		{"bad backend", "reader:\n  backend: bluetooth\n", "config.reader.backend"},
		{"mac too short", "auth:\n  mac_size: 2\n", "config.auth.mac_size"},
		{"mac too long", "auth:\n  mac_size: 33\n", "config.auth.mac_size"},
		{"missing key file", "auth:\n  key_file: nope.key\n", "config.auth.key_file"},
		{"bad port", "server:\n  port: 70000\n", "config.server.port"},
		{"negative poll timeout", "reader:\n  poll_timeout: -1s\n", "config.reader.poll_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := writeConfig(t, t.TempDir(), tt.yaml)
			_, err := Load(cfgPath)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadKeyFileMustNotBeDirectory(t *testing.T) {
	tmp := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmp, "keys"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := writeConfig(t, tmp, "auth:\n  key_file: keys\n")

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "must point to a file") {
		t.Fatalf("expected directory error, got %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
