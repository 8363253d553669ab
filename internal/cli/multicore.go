// internal/cli/multicore.go
package aletheia

import (
	"fmt"

	"github.com/mwiater/aletheia/internal/app"
	"github.com/spf13/cobra"
)

// multicoreCmd represents the 'multicore' command group.
var multicoreCmd = &cobra.Command{
	Use:   "multicore",
	Short: "Group commands for the isolation helper",
	Long:  `The 'multicore' command groups subcommands that enable, reset or inspect multi-threaded mode.`,
}

var multicoreEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Register the isolation helper and wait for it to take control",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			err := a.Controller().Enable(cmd.Context())
			printLatest(cmd, a)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Helper: %s\n", successLine(a.Platform().BaseURL()))
			return nil
		})
	},
}

var multicoreResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Unregister the isolation helper",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			err := a.Controller().Reset(cmd.Context())
			printLatest(cmd, a)
			return err
		})
	},
}

var multicoreStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the helper registration and isolation state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			out := cmd.OutOrStdout()
			regs, err := a.Platform().Registrations(cmd.Context())
			if err != nil {
				return err
			}
			if len(regs) == 0 {
				fmt.Fprintln(out, "No helper registrations found.")
				return nil
			}
			for _, reg := range regs {
				fmt.Fprintf(out, "Registration %s on %s (since %s)\n", reg.ID, reg.Addr, reg.Created.Format("2006-01-02 15:04:05"))
			}
			if a.Revive(cmd.Context()) && a.Platform().Isolated(cmd.Context()) {
				fmt.Fprintln(out, successLine("Isolated: yes (multi-core available)"))
			} else {
				fmt.Fprintln(out, failedLine("Isolated: no (single-core)"))
			}
			return nil
		})
	},
}

func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := openApp(config())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printLatest(cmd *cobra.Command, a *app.App) {
	if line := a.Feed().Latest(); line != "" {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}

func init() {
	multicoreCmd.AddCommand(multicoreEnableCmd, multicoreResetCmd, multicoreStatusCmd)
	rootCmd.AddCommand(multicoreCmd)
}
