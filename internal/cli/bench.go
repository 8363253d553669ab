// internal/cli/bench.go
package aletheia

import (
	"context"
	"fmt"

	"github.com/mwiater/aletheia/internal/app"
	"github.com/mwiater/aletheia/internal/orchestrator"
	"github.com/spf13/cobra"
)

// benchmarkCmd represents the benchmark command.
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Run the speed test followed by the SIMD comparison",
	Long: `The 'benchmark' command plays --count games against random dictionary
targets and reports win rate, average guesses and latency percentiles. With
--engine the engine's own speed routine is used instead. Unthreaded runs save a
baseline that threaded runs are compared against. Results are written under
<dataDir>/benchmarks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		if !cmd.Flags().Changed("count") {
			count = config().BenchmarkTrials()
		}
		useEngine, _ := cmd.Flags().GetBool("engine")
		return withSession(cmd, func(ctx context.Context, _ *app.App, s *orchestrator.Session) error {
			defer printFeed(cmd, s)
			run := s.RunBenchmark
			if useEngine {
				run = s.RunEngineSpeedTest
			}
			report, err := run(ctx, count)
			out := cmd.OutOrStdout()
			if err != nil {
				fmt.Fprintln(out, failedLine(s.Status()))
				return err
			}
			fmt.Fprintf(out, "%s (%s, %d games)\n", successLine(report.Result.Summary()), s.ModeLabel(), report.Result.SampleCount)
			if report.Result.Source != "engine" {
				fmt.Fprintf(out, "P50: %.2fms | P90: %.2fms\n", report.Result.P50Ms, report.Result.P90Ms)
			}
			if report.Result.BaselineDeltaMs != nil && report.Result.BaselineDeltaPct != nil {
				fmt.Fprintf(out, "Multi-core delta vs baseline: %.2fms (%.1f%%)\n", *report.Result.BaselineDeltaMs, *report.Result.BaselineDeltaPct)
			}
			if report.Simd != nil {
				fmt.Fprintf(out, "Throughput scalar: %.2f words/us | SIMD: %.2f words/us\n", report.Simd.Scalar.WordsPerMicro, report.Simd.Simd.WordsPerMicro)
			}
			return nil
		})
	},
}

// stressCmd runs the adversarial stress routine.
var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run the adversarial stress test",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		if !cmd.Flags().Changed("count") {
			count = config().StressTrials()
		}
		return withSession(cmd, func(ctx context.Context, _ *app.App, s *orchestrator.Session) error {
			defer printFeed(cmd, s)
			result, err := s.RunStress(ctx, count)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), failedLine(s.Status()))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successLine(result.Summary()))
			return nil
		})
	},
}

// simdCmd compares scalar and vectorized filtering throughput.
var simdCmd = &cobra.Command{
	Use:   "simd [guess]",
	Short: "Compare scalar and SIMD candidate filtering throughput",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guess := ""
		if len(args) == 1 {
			guess = args[0]
		}
		return withSession(cmd, func(ctx context.Context, _ *app.App, s *orchestrator.Session) error {
			defer printFeed(cmd, s)
			cmp, err := s.RunSimdComparison(ctx, guess)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), failedLine(s.Feed().Latest()))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Guess: %s\nThroughput scalar: %.2f words/us | SIMD: %.2f words/us\n",
				cmp.Guess, cmp.Scalar.WordsPerMicro, cmp.Simd.WordsPerMicro)
			return nil
		})
	},
}

func init() {
	benchmarkCmd.Flags().Int("count", 100, "number of games (clamped to 500)")
	benchmarkCmd.Flags().Bool("engine", false, "use the engine's built-in speed routine")
	stressCmd.Flags().Int("count", 25, "number of adversarial games (clamped to 200)")
	for _, c := range []*cobra.Command{benchmarkCmd, stressCmd, simdCmd} {
		addDictionaryFlag(c)
		rootCmd.AddCommand(c)
	}
}
