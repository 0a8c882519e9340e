package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
	t.Setenv("CONFIG_ENV", "test")
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	writeConfig(t, "mode: test\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.GitHubAPI != "https://api.github.com" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if len(cfg.STUNServers) == 0 {
		t.Fatal("no default STUN server")
	}
}

func TestLoadOverridesAndTokens(t *testing.T) {
	writeConfig(t, `
port: 9000
ping_period: 30s
tokens:
  tok-alice:
    handle: alice
    status: approved
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Port)
	}
	seed, ok := cfg.Tokens["tok-alice"]
	if !ok || seed.Handle != "alice" || seed.Status != "approved" {
		t.Fatalf("tokens = %+v", cfg.Tokens)
	}
}

func TestLoadRejectsUnparsableValues(t *testing.T) {
	writeConfig(t, "ping_period: not-a-duration\n")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted an unparsable duration")
	}
}
