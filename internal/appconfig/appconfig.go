// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is the path to the configuration file used in previous versions.
	legacyConfigPath = "config.json"

	defaultIsolationWait  = 8 * time.Second
	defaultBenchmarkCount = 100
	defaultStressCount    = 25
	defaultYieldEvery     = 20
	defaultLogCapacity    = 120
	defaultThreads        = 4
	defaultHelperAddr     = "127.0.0.1:0"
	defaultDataDir        = "aletheiaData"
	defaultPlotWidth      = 640
	defaultPlotHeight     = 480
	defaultPlotOutput     = "groups.png"
	defaultHistOutput     = "histogram.png"

	// EngineNative selects the in-process reference engine.
	EngineNative = "native"
	// EngineWASM selects a WebAssembly engine module hosted by wazero.
	EngineWASM = "wasm"
)

// Config represents the top-level application configuration.
type Config struct {
	Debug                bool    `json:"debug"`
	LogFile              string  `json:"logFile,omitempty"`
	DataDir              string  `json:"dataDir,omitempty"`
	DictionaryPath       string  `json:"dictionaryPath,omitempty"`
	GroupWordsPath       string  `json:"groupWordsPath,omitempty"`
	HardMode             bool    `json:"hardMode"`
	LexicalWeight        float64 `json:"lexicalWeight"`
	Simd                 bool    `json:"simd"`
	Threads              int     `json:"threads,omitempty"`
	Engine               string  `json:"engine,omitempty"`
	WASMPath             string  `json:"wasmPath,omitempty"`
	WASMThreadedPath     string  `json:"wasmThreadedPath,omitempty"`
	HelperAddr           string  `json:"helperAddr,omitempty"`
	IsolationWaitSeconds int     `json:"isolationWaitSeconds,omitempty"`
	BenchmarkCount       int     `json:"benchmarkCount,omitempty"`
	StressCount          int     `json:"stressCount,omitempty"`
	YieldEvery           int     `json:"yieldEvery,omitempty"`
	BenchmarkSeed        int64   `json:"benchmarkSeed,omitempty"`
	LogCapacity          int     `json:"logCapacity,omitempty"`
	Plot                 Plot    `json:"plot"`
	ConfigPath           string  `json:"-"`
}

// Plot controls the group projection and histogram images.
type Plot struct {
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	DPR             float64 `json:"dpr,omitempty"`
	Output          string  `json:"output,omitempty"`
	HistogramOutput string  `json:"histogramOutput,omitempty"`
	// Offscreen is a pointer so an omitted field keeps the rendering goroutine on.
	Offscreen *bool `json:"offscreen,omitempty"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{LexicalWeight: 0, Simd: true, Engine: EngineNative}
}

// IsolationWait returns the wait window for helper control and the deferred stuck check.
func (c Config) IsolationWait() time.Duration {
	if c.IsolationWaitSeconds <= 0 {
		return defaultIsolationWait
	}
	return time.Duration(c.IsolationWaitSeconds) * time.Second
}

// ThreadCount returns the worker count used in multi-core mode.
func (c Config) ThreadCount() int {
	if c.Threads <= 0 {
		return defaultThreads
	}
	if limit := runtime.NumCPU() * 4; c.Threads > limit {
		return limit
	}
	return c.Threads
}

// EngineKind returns the normalized engine selector.
func (c Config) EngineKind() string {
	kind := strings.ToLower(strings.TrimSpace(c.Engine))
	if kind == "" {
		return EngineNative
	}
	return kind
}

func (c Config) BenchmarkTrials() int {
	if c.BenchmarkCount <= 0 {
		return defaultBenchmarkCount
	}
	return c.BenchmarkCount
}

func (c Config) StressTrials() int {
	if c.StressCount <= 0 {
		return defaultStressCount
	}
	return c.StressCount
}

func (c Config) YieldInterval() int {
	if c.YieldEvery <= 0 {
		return defaultYieldEvery
	}
	return c.YieldEvery
}

func (c Config) DiagCapacity() int {
	if c.LogCapacity <= 0 {
		return defaultLogCapacity
	}
	return c.LogCapacity
}

// HelperAddress returns the listen address for the isolation helper.
func (c Config) HelperAddress() string {
	if addr := strings.TrimSpace(c.HelperAddr); addr != "" {
		return addr
	}
	return defaultHelperAddr
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "aletheia.log"
}

// DataPath returns the directory holding durable flags and benchmark results.
func (c Config) DataPath() string {
	if dir := strings.TrimSpace(c.DataDir); dir != "" {
		return dir
	}
	return defaultDataDir
}

// PlotConfig returns the plot settings with defaults applied. Relative output
// paths are placed under the data directory.
func (c Config) PlotConfig() Plot {
	p := c.Plot
	if p.Width <= 0 {
		p.Width = defaultPlotWidth
	}
	if p.Height <= 0 {
		p.Height = defaultPlotHeight
	}
	if p.DPR <= 0 {
		p.DPR = 1
	}
	if strings.TrimSpace(p.Output) == "" {
		p.Output = defaultPlotOutput
	}
	if strings.TrimSpace(p.HistogramOutput) == "" {
		p.HistogramOutput = defaultHistOutput
	}
	if !filepath.IsAbs(p.Output) {
		p.Output = filepath.Join(c.DataPath(), p.Output)
	}
	if !filepath.IsAbs(p.HistogramOutput) {
		p.HistogramOutput = filepath.Join(c.DataPath(), p.HistogramOutput)
	}
	if p.Offscreen == nil {
		on := true
		p.Offscreen = &on
	}
	return p
}

// OffscreenEnabled reports whether plots go through the rendering goroutine.
func (p Plot) OffscreenEnabled() bool {
	return p.Offscreen == nil || *p.Offscreen
}

// Validate rejects settings the engine factory cannot satisfy.
func (c Config) Validate() error {
	switch c.EngineKind() {
	case EngineNative:
	case EngineWASM:
		if strings.TrimSpace(c.WASMPath) == "" {
			return errors.New("engine \"wasm\" requires wasmPath")
		}
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.LexicalWeight < 0 || c.LexicalWeight > 1 {
		return fmt.Errorf("lexicalWeight must be within [0,1], got %g", c.LexicalWeight)
	}
	return nil
}

// Load reads the application configuration from the specified path, with fallback to a legacy path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		if err := config.Validate(); err != nil {
			return Config{}, err
		}
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if path == DefaultConfigPath {
			config, legacyErr := loadFromPath(legacyConfigPath)
			if legacyErr == nil {
				if err := config.Validate(); err != nil {
					return Config{}, err
				}
				config.ConfigPath = legacyConfigPath
				return config, nil
			}
			if errors.Is(legacyErr, os.ErrNotExist) {
				return Config{}, fmt.Errorf("no configuration file found (searched %q and %q): %w", DefaultConfigPath, legacyConfigPath, os.ErrNotExist)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
		}
		return Config{}, fmt.Errorf("no configuration file found at %q: %w", path, os.ErrNotExist)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	config := Defaults()
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}
