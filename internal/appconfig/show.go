package appconfig

import (
	"fmt"
	"io"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config, fallback Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		cfg = &fallback
	}
	plot := cfg.PlotConfig()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Debug:            %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Engine:           %s\n", cfg.EngineKind())
	if cfg.EngineKind() == EngineWASM {
		fmt.Fprintf(out, "  WASM Module:      %s\n", cfg.WASMPath)
		fmt.Fprintf(out, "  WASM Threaded:    %s\n", cfg.WASMThreadedPath)
	}
	fmt.Fprintf(out, "  Threads:          %d\n", cfg.ThreadCount())
	fmt.Fprintf(out, "  Hard Mode:        %v\n", cfg.HardMode)
	fmt.Fprintf(out, "  SIMD:             %v\n", cfg.Simd)
	fmt.Fprintf(out, "  Lexical Weight:   %.2f\n", cfg.LexicalWeight)
	fmt.Fprintf(out, "  Dictionary:       %s\n", cfg.DictionaryPath)
	fmt.Fprintf(out, "  Group Words:      %s\n", cfg.GroupWordsPath)
	fmt.Fprintf(out, "  Data Dir:         %s\n", cfg.DataPath())
	fmt.Fprintf(out, "  Log File:         %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Helper Address:   %s\n", cfg.HelperAddress())
	fmt.Fprintf(out, "  Isolation Wait:   %s\n", cfg.IsolationWait())
	fmt.Fprintf(out, "  Benchmark Count:  %d\n", cfg.BenchmarkTrials())
	fmt.Fprintf(out, "  Stress Count:     %d\n", cfg.StressTrials())
	fmt.Fprintf(out, "  Yield Every:      %d\n", cfg.YieldInterval())
	fmt.Fprintf(out, "  Diagnostic Lines: %d\n", cfg.DiagCapacity())
	fmt.Fprintf(out, "  Plot:             %dx%d @%.1fx -> %s (offscreen: %v)\n", plot.Width, plot.Height, plot.DPR, plot.Output, plot.OffscreenEnabled())
}
