// internal/cli/wordle.go
package aletheia

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwiater/aletheia/internal/app"
	"github.com/mwiater/aletheia/internal/orchestrator"
	"github.com/spf13/cobra"
)

// patternCmd computes a feedback pattern without touching the candidate pool.
var patternCmd = &cobra.Command{
	Use:   "pattern <guess> <target>",
	Short: "Compute the feedback pattern of a guess against a target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(_ context.Context, _ *app.App, s *orchestrator.Session) error {
			out := s.ComputePattern(args[0], args[1])
			if out == "Invalid input." {
				fmt.Fprintln(cmd.OutOrStdout(), failedLine(out))
				return fmt.Errorf("invalid pattern input %q %q", args[0], args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

// bestCmd replays feedback given with --feedback and prints the best guess.
var bestCmd = &cobra.Command{
	Use:   "best",
	Short: "Print the highest-entropy guess and the top candidates",
	Long: `The 'best' command loads the dictionary, applies any --feedback pairs
(guess:pattern) in order and prints the best next guess with its entropy bars.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		feedback, _ := cmd.Flags().GetStringSlice("feedback")
		return withSession(cmd, func(_ context.Context, _ *app.App, s *orchestrator.Session) error {
			defer printFeed(cmd, s)
			out := cmd.OutOrStdout()
			for _, pair := range feedback {
				guess, pattern, ok := strings.Cut(pair, ":")
				if !ok {
					return fmt.Errorf("feedback %q: expected guess:pattern", pair)
				}
				if remaining := s.ApplyFeedback(guess, pattern); remaining < 0 {
					fmt.Fprintln(out, failedLine(s.Status()))
					return fmt.Errorf("feedback %q rejected", pair)
				}
			}
			line, bars := s.BestGuess()
			if !strings.HasPrefix(line, "Best guess:") {
				fmt.Fprintln(out, failedLine(line))
				return fmt.Errorf("%s", line)
			}
			fmt.Fprintln(out, successLine(line))
			for _, bar := range bars {
				fmt.Fprintf(out, "  %-14s %s\n", bar.Label(), strings.Repeat("#", max(1, int(bar.Percent/100*30))))
			}
			fmt.Fprintf(out, "Remaining: %d\n", s.Remaining())
			return nil
		})
	},
}

func init() {
	addDictionaryFlag(patternCmd)
	addDictionaryFlag(bestCmd)
	bestCmd.Flags().StringSlice("feedback", nil, "guess:pattern pairs applied before scoring")
	rootCmd.AddCommand(patternCmd, bestCmd)
}
