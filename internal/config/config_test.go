package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxPlayers != DefaultServerConfig().MaxPlayers {
		t.Fatalf("expected defaults when file is missing, got %+v", cfg)
	}
}

func TestLoadServerConfigOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yml")
	if err := os.WriteFile(path, []byte("maxPlayers: 8\nport: 7777\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxPlayers != 8 {
		t.Fatalf("expected maxPlayers=8, got %d", cfg.MaxPlayers)
	}
	if cfg.Port != 7777 {
		t.Fatalf("expected port=7777, got %d", cfg.Port)
	}
	// Fields absent from the file retain their defaults.
	if cfg.PasscodeLength != DefaultServerConfig().PasscodeLength {
		t.Fatalf("expected default passcode length, got %d", cfg.PasscodeLength)
	}
}

func TestLoadServerConfigEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yml")
	if err := os.WriteFile(path, []byte("port: 1111\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	t.Setenv("IP", "10.0.0.5")
	t.Setenv("PORT", "2222")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IP != "10.0.0.5" {
		t.Fatalf("expected IP env override to win, got %q", cfg.IP)
	}
	if cfg.Port != 2222 {
		t.Fatalf("expected PORT env override to win over file, got %d", cfg.Port)
	}
}

func TestLoadClientConfigDefaultServerAddressEmptyByDefault(t *testing.T) {
	cfg, err := LoadClientConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultServerAddress != "" {
		t.Fatalf("expected empty DefaultServerAddress by default, got %q", cfg.DefaultServerAddress)
	}
}

func TestLoadClientConfigFileSetsAutoSubmitAddress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yml")
	if err := os.WriteFile(path, []byte("defaultServerAddress: 192.168.1.5:9000\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultServerAddress != "192.168.1.5:9000" {
		t.Fatalf("expected configured address, got %q", cfg.DefaultServerAddress)
	}
}
