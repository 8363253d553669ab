// internal/cli/groups.go
package aletheia

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/k0kubun/pp"
	"github.com/mwiater/aletheia/internal/app"
	"github.com/mwiater/aletheia/internal/orchestrator"
	"github.com/spf13/cobra"
)

// groupsCmd solves a sixteen-word grouping puzzle and writes the projection plot.
var groupsCmd = &cobra.Command{
	Use:   "groups [words...]",
	Short: "Partition sixteen words into four groups and plot the vector space",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if text == "" {
			path := strings.TrimSpace(config().GroupWordsPath)
			if path == "" {
				return fmt.Errorf("no words given and groupWordsPath is not set")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read group words: %w", err)
			}
			text = string(data)
		}
		weight, _ := cmd.Flags().GetFloat64("weight")

		return withSession(cmd, func(_ context.Context, _ *app.App, s *orchestrator.Session) error {
			defer printFeed(cmd, s)
			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("weight") {
				if err := s.SetLexicalWeight(weight); err != nil {
					return err
				}
			}
			result, err := s.SolveGroups(text)
			if err != nil {
				fmt.Fprintln(out, failedLine(s.Status()))
				return err
			}
			s.Flush()
			fmt.Fprintln(out, result.Text())
			fmt.Fprintln(out, noteLine(result.Meta))
			fmt.Fprintf(out, "Plot: %s\n", config().PlotConfig().Output)
			if DebugEnabled() {
				pp.Println(result.Solution)
			}
			return nil
		})
	},
}

func init() {
	groupsCmd.Flags().Float64("weight", 0, "lexical blending weight in [0,1], saved for later runs")
	rootCmd.AddCommand(groupsCmd)
}
