package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nedpals/davi-tagauth/keys"
	"github.com/nedpals/davi-tagauth/station"
	"github.com/nedpals/davi-tagauth/tagauth"
)

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "reader:\n  backend: libnfc\n  device: pn532_uart:/dev/ttyUSB0\nserver:\n  port: 9000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	portFlag = 9100
	apiSecretFlag = "s3cret"
	t.Cleanup(func() {
		portFlag = 0
		apiSecretFlag = ""
	})

	cfg, err := loadConfig(path, map[string]bool{"port": true, "api-secret": true})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Server.APISecret != "s3cret" {
		t.Errorf("api secret = %q, want s3cret", cfg.Server.APISecret)
	}
	if cfg.Reader.Backend != "libnfc" {
		t.Errorf("backend = %q, want libnfc from file", cfg.Reader.Backend)
	}
	if cfg.Reader.Device != "pn532_uart:/dev/ttyUSB0" {
		t.Errorf("device = %q, want value from file", cfg.Reader.Device)
	}
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	backendFlag = "serial"
	t.Cleanup(func() { backendFlag = "" })

	if _, err := loadConfig("", map[string]bool{"backend": true}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestKeyProvider_Order(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("from_file_key"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TAGAUTH_TEST_KEY", "from_env_key")

	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	cfg.Auth.KeyEnv = "TAGAUTH_TEST_KEY"

	key, err := keyProvider(cfg).SecretKey()
	if err != nil {
		t.Fatalf("SecretKey failed: %v", err)
	}
	if !bytes.Equal(key, []byte("from_env_key")) {
		t.Errorf("key = %q, want env key without a key file", key)
	}

	cfg.Auth.KeyFile = keyFile
	key, err = keyProvider(cfg).SecretKey()
	if err != nil {
		t.Fatalf("SecretKey failed: %v", err)
	}
	if !bytes.Equal(key, []byte("from_file_key")) {
		t.Errorf("key = %q, want file key first", key)
	}
}

func TestKeyProvider_NoKey(t *testing.T) {
	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	cfg.Auth.KeyEnv = "TAGAUTH_TEST_UNSET_KEY"

	if _, err := keyProvider(cfg).SecretKey(); !errors.Is(err, keys.ErrNoKey) {
		t.Errorf("err = %v, want ErrNoKey", err)
	}
}

func TestPanelLabels(t *testing.T) {
	tests := []struct {
		name string
		snap station.Snapshot
		want panelText
	}{
		{
			name: "idle",
			snap: station.Snapshot{State: tagauth.StateIdle, Message: "Idle"},
			want: panelText{Status: "Status: Idle", UID: "UID: -", Counter: "Counter: -", MAC: "MAC: -", Outcome: "Outcome: -"},
		},
		{
			name: "authentic read",
			snap: station.Snapshot{
				State:   tagauth.StateSucceeded,
				UID:     "04A1B2C3",
				Counter: 7,
				MAC:     "e2d729fd",
				Outcome: "authentic",
				Message: "Read complete.",
			},
			want: panelText{Status: "Status: Read complete.", UID: "UID: 04A1B2C3", Counter: "Counter: 7", MAC: "MAC: e2d729fd", Outcome: "Outcome: AUTHENTIC"},
		},
		{
			name: "malformed read",
			snap: station.Snapshot{
				State:   tagauth.StateSucceeded,
				UID:     "04A1B2C3",
				Outcome: "malformed",
				Message: "Read complete.",
			},
			want: panelText{Status: "Status: Read complete.", UID: "UID: 04A1B2C3", Counter: "Counter: -", MAC: "MAC: -", Outcome: "Outcome: MALFORMED"},
		},
		{
			name: "failure",
			snap: station.Snapshot{
				State:   tagauth.StateFailed,
				Message: "Failed to read card.",
				Error:   "no tag present",
			},
			want: panelText{Status: "Status: Failed to read card. (no tag present)", UID: "UID: -", Counter: "Counter: -", MAC: "MAC: -", Outcome: "Outcome: -"},
		},
		{
			name: "no message",
			snap: station.Snapshot{State: tagauth.StateInProgress},
			want: panelText{Status: "Status: in-progress", UID: "UID: -", Counter: "Counter: -", MAC: "MAC: -", Outcome: "Outcome: -"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := panelLabels(tt.snap); got != tt.want {
				t.Errorf("panelLabels() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIconForState(t *testing.T) {
	states := []tagauth.State{tagauth.StateIdle, tagauth.StateInProgress, tagauth.StateSucceeded, tagauth.StateFailed}
	seen := make(map[string]tagauth.State)
	for _, state := range states {
		icon := iconForState(state)
		if len(icon) == 0 {
			t.Fatalf("no icon for %s", state)
		}
		if !bytes.HasPrefix(icon, []byte("\x89PNG")) {
			t.Errorf("icon for %s is not a PNG", state)
		}
		if other, ok := seen[string(icon)]; ok {
			t.Errorf("%s and %s share an icon", state, other)
		}
		seen[string(icon)] = state
	}
}
