// internal/appconfig/appconfig_test.go
package appconfig

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoad covers a valid file, malformed JSON, a rejected engine and a missing file.
func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `{
        "hardMode": true,
        "lexicalWeight": 0.3,
        "threads": 2,
        "plot": {"width": 800}
    }`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() with valid config failed: %v", err)
	}
	if cfg.ConfigPath != path {
		t.Fatalf("expected ConfigPath %q, got %q", path, cfg.ConfigPath)
	}
	if !cfg.HardMode || cfg.LexicalWeight != 0.3 || cfg.ThreadCount() != 2 {
		t.Fatalf("unexpected config values: %+v", cfg)
	}
	if !cfg.Simd {
		t.Fatalf("expected simd default to survive decoding")
	}
	if cfg.EngineKind() != EngineNative {
		t.Fatalf("expected native engine default, got %q", cfg.EngineKind())
	}
	if cfg.IsolationWait() != 8*time.Second {
		t.Fatalf("expected default isolation wait of 8s, got %v", cfg.IsolationWait())
	}

	if _, err := Load(writeTempConfig(t, `{ "debug": `)); err == nil {
		t.Fatal("Load() with invalid JSON should have failed")
	}

	if _, err := Load(writeTempConfig(t, `{ "engine": "wasm" }`)); err == nil {
		t.Fatal("Load() with wasm engine and no module path should have failed")
	}

	if _, err := Load(writeTempConfig(t, `{ "engine": "gpu" }`)); err == nil {
		t.Fatal("Load() with unknown engine should have failed")
	}

	if _, err := Load(writeTempConfig(t, `{ "lexicalWeight": 1.5 }`)); err == nil {
		t.Fatal("Load() with out of range lexical weight should have failed")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load() with nonexistent file should report not-exist, got %v", err)
	}
}

func TestDefaultAccessors(t *testing.T) {
	var cfg Config
	if cfg.BenchmarkTrials() != 100 {
		t.Fatalf("expected 100 benchmark trials, got %d", cfg.BenchmarkTrials())
	}
	if cfg.StressTrials() != 25 {
		t.Fatalf("expected 25 stress trials, got %d", cfg.StressTrials())
	}
	if cfg.YieldInterval() != 20 {
		t.Fatalf("expected yield every 20, got %d", cfg.YieldInterval())
	}
	if cfg.DiagCapacity() != 120 {
		t.Fatalf("expected diag capacity 120, got %d", cfg.DiagCapacity())
	}
	if cfg.ThreadCount() != 4 {
		t.Fatalf("expected 4 threads, got %d", cfg.ThreadCount())
	}
	if cfg.LogFilePath() != "aletheia.log" {
		t.Fatalf("unexpected log path %q", cfg.LogFilePath())
	}
	if cfg.HelperAddress() != "127.0.0.1:0" {
		t.Fatalf("unexpected helper address %q", cfg.HelperAddress())
	}

	plot := cfg.PlotConfig()
	if plot.Width != 640 || plot.Height != 480 || plot.DPR != 1 {
		t.Fatalf("unexpected plot defaults: %+v", plot)
	}
	if plot.Output != filepath.Join("aletheiaData", "groups.png") {
		t.Fatalf("unexpected plot output %q", plot.Output)
	}
	if !plot.OffscreenEnabled() {
		t.Fatalf("expected offscreen rendering by default")
	}

	off := false
	cfg.Plot.Offscreen = &off
	if cfg.PlotConfig().OffscreenEnabled() {
		t.Fatalf("expected offscreen disabled when configured")
	}
}

func TestShowConfig(t *testing.T) {
	var buf bytes.Buffer
	ShowConfig(&buf, "", nil, Defaults())
	out := buf.String()
	if !strings.Contains(out, "No config file loaded (using defaults).") {
		t.Fatalf("expected defaults banner, got: %s", out)
	}
	if !strings.Contains(out, "Engine:           native") {
		t.Fatalf("expected engine line, got: %s", out)
	}

	buf.Reset()
	cfg := Config{Engine: "wasm", WASMPath: "engine.wasm", Threads: 2}
	ShowConfig(&buf, "config/config.json", &cfg, Defaults())
	out = buf.String()
	if !strings.Contains(out, "Config file: config/config.json") || !strings.Contains(out, "WASM Module:      engine.wasm") {
		t.Fatalf("expected wasm details, got: %s", out)
	}
}
