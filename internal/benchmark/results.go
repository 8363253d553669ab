package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mwiater/aletheia/internal/logging"
)

var writeResultsFn = writeResults

// ResultLabel names a run by source, execution mode and difficulty.
func ResultLabel(result Result) string {
	mode := "single-core"
	if result.Threaded {
		mode = "multi-core"
	}
	return strings.Join([]string{result.Source, mode, modeLabel(result.HardMode)}, "-")
}

// writeResults writes the benchmark result to a JSON file under dataDir.
func writeResults(dataDir string, result Result) error {
	dir := filepath.Join(dataDir, "benchmarks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating results directory: %w", err)
	}
	fileName := filepath.Join(dir, fmt.Sprintf("%s-%d.json", Slugify(ResultLabel(result)), result.SampleCount))

	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("error creating result file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("error writing results to file: %w", err)
	}

	logging.LogEvent("Benchmark results written to %s", fileName)
	return nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9_]+`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slugify converts a string into a "slug" format,
// including replacing colons (:) with underscores (_).
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ":", "_")
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-_")
}
