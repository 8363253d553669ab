package aletheia

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/aletheia/cli"
	"github.com/mwiater/aletheia/internal/app"
	"github.com/mwiater/aletheia/internal/appconfig"
	"github.com/mwiater/aletheia/internal/flagstore"
	"github.com/mwiater/aletheia/internal/orchestrator"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const sampleDict = "raise\ncrane\nslate\narise\ncrate\nslant\ntrice\ntrace\nirate\nstare\nshare\nspare\n"

// useTestApp points the commands at an in-memory flag store and a config
// rooted in a temp dir.
func useTestApp(t *testing.T) appconfig.Config {
	t.Helper()
	dir := t.TempDir()
	dict := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(dict, []byte(sampleDict), 0o644); err != nil {
		t.Fatalf("write dictionary: %v", err)
	}
	cfg := appconfig.Defaults()
	off := false
	cfg.DataDir = dir
	cfg.DictionaryPath = dict
	cfg.HelperAddr = "127.0.0.1:0"
	cfg.BenchmarkSeed = 11
	cfg.Plot.Offscreen = &off

	origOpen, origConfig := openApp, currentConfig
	durable := flagstore.NewMemory()
	openApp = func(c appconfig.Config) (*app.App, error) {
		return app.Open(c, app.Options{Durable: durable})
	}
	currentConfig = &cfg
	t.Cleanup(func() {
		openApp = origOpen
		currentConfig = origConfig
	})
	return cfg
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetContext(context.Background())
	resetFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	t.Cleanup(func() { resetFlags(cmd) })
	err := cmd.RunE(cmd, cmd.Flags().Args())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

func TestPatternCommand(t *testing.T) {
	useTestApp(t)
	out, err := runCommand(t, patternCmd, "crane", "crane")
	if err != nil {
		t.Fatalf("pattern: %v", err)
	}
	if strings.TrimSpace(out) != "Pattern: 22222" {
		t.Fatalf("unexpected output: %q", out)
	}

	out, err = runCommand(t, patternCmd, "cr", "crane")
	if err == nil || !strings.Contains(out, "Invalid input.") {
		t.Fatalf("expected invalid input, got %q (%v)", out, err)
	}
}

func TestBestCommandAppliesFeedback(t *testing.T) {
	useTestApp(t)
	out, err := runCommand(t, bestCmd, "--feedback", "crane:00000")
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if !strings.Contains(out, "Best guess: ") || !strings.Contains(out, "Remaining: ") {
		t.Fatalf("unexpected output: %q", out)
	}

	_, err = runCommand(t, bestCmd, "--feedback", "crane")
	if err == nil {
		t.Fatal("expected malformed feedback to fail")
	}
}

func TestGroupsCommand(t *testing.T) {
	cfg := useTestApp(t)
	words := strings.Fields("bee tee cue sea brie feta gouda cheddar pinch nick swipe lift hand back arm face")
	out, err := runCommand(t, groupsCmd, append([]string{"--weight", "0.3"}, words...)...)
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if !strings.Contains(out, "Group 4: ") || !strings.Contains(out, "Lexical weight: 0.30") {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := os.Stat(cfg.PlotConfig().Output); err != nil {
		t.Fatalf("expected plot written: %v", err)
	}
}

func TestBenchmarkAndStressCommands(t *testing.T) {
	cfg := useTestApp(t)
	out, err := runCommand(t, benchmarkCmd, "--count", "4")
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	if !strings.Contains(out, "Win rate: ") || !strings.Contains(out, "Throughput scalar: ") {
		t.Fatalf("unexpected output: %q", out)
	}
	matches, _ := filepath.Glob(filepath.Join(cfg.DataPath(), "benchmarks", "*.json"))
	if len(matches) != 1 {
		t.Fatalf("expected one result file, got %v", matches)
	}

	out, err = runCommand(t, stressCmd, "--count", "2")
	if err != nil {
		t.Fatalf("stress: %v", err)
	}
	if !strings.Contains(out, "Worst step: ") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestMulticoreStatusWithoutRegistration(t *testing.T) {
	useTestApp(t)
	out, err := runCommand(t, multicoreStatusCmd)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.TrimSpace(out) != "No helper registrations found." {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestListCommandsIncludesTree(t *testing.T) {
	var buf bytes.Buffer
	runListCommands(&buf, rootCmd)
	out := buf.String()
	for _, want := range []string{"aletheia", "workbench", "multicore enable", "show config"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in command list: %s", want, out)
		}
	}
}

func TestWorkbenchCommandRunsFrontend(t *testing.T) {
	useTestApp(t)
	orig := startWorkbench
	t.Cleanup(func() { startWorkbench = orig })
	calls := 0
	startWorkbench = func(ctx context.Context, cfg appconfig.Config, s *orchestrator.Session, _ cli.Controller) error {
		calls++
		if s.Remaining() != 12 {
			t.Fatalf("expected dictionary loaded, remaining=%d", s.Remaining())
		}
		return nil
	}
	if _, err := runCommand(t, workbenchCmd); err != nil {
		t.Fatalf("workbench: %v", err)
	}
	if calls < 1 {
		t.Fatal("expected the workbench frontend to run")
	}
}
