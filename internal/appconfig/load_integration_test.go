// internal/appconfig/load_integration_test.go
package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldCwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
}

func TestLoadDefaultPath(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}

	payload := `{ "engine": "native", "threads": 8, "isolationWaitSeconds": 3 }`
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	chdir(t, tempDir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ConfigPath != DefaultConfigPath {
		t.Fatalf("expected default config path, got %q", cfg.ConfigPath)
	}
	if cfg.IsolationWaitSeconds != 3 {
		t.Fatalf("expected isolation wait 3, got %d", cfg.IsolationWaitSeconds)
	}
}

func TestLoadLegacyFallback(t *testing.T) {
	tempDir := t.TempDir()
	payload := `{ "hardMode": true }`
	if err := os.WriteFile(filepath.Join(tempDir, "config.json"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write legacy config: %v", err)
	}
	chdir(t, tempDir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.HardMode {
		t.Fatalf("expected hard mode from legacy config")
	}
	if cfg.ConfigPath != legacyConfigPath {
		t.Fatalf("expected legacy config path, got %q", cfg.ConfigPath)
	}
}

func TestLoadNoFiles(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error when no config files exist")
	}
}
