// internal/cli/workbench.go
package aletheia

import (
	"context"

	"github.com/mwiater/aletheia/cli"
	"github.com/mwiater/aletheia/internal/orchestrator"
	"github.com/spf13/cobra"
)

var startWorkbench = cli.StartWorkbench

// workbenchCmd represents the 'workbench' command.
var workbenchCmd = &cobra.Command{
	Use:   "workbench",
	Short: "Start the interactive workbench",
	Long:  `The 'workbench' command starts the interactive terminal workbench. It reloads into multi-threaded mode once the isolation helper takes control.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config()
		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Run(cmd.Context(), func(ctx context.Context, s *orchestrator.Session) error {
			return startWorkbench(ctx, cfg, s, a.Controller())
		})
	},
}

func init() {
	rootCmd.AddCommand(workbenchCmd)
}
