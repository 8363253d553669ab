// internal/cli/session.go
package aletheia

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/mwiater/aletheia/internal/app"
	"github.com/mwiater/aletheia/internal/appconfig"
	"github.com/mwiater/aletheia/internal/orchestrator"
	"github.com/spf13/cobra"
)

var (
	successLine = color.New(color.FgGreen).SprintFunc()
	failedLine  = color.New(color.FgRed).SprintFunc()
	noteLine    = color.New(color.FgHiBlack).SprintFunc()
)

// openApp is swapped in tests to avoid the pebble store and the helper.
var openApp = func(cfg appconfig.Config) (*app.App, error) {
	return app.Open(cfg, app.Options{})
}

// withSession opens the app, builds a session in the mode the helper reports
// and hands both to fn. A dictionary given by --dictionary replaces the
// configured one.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, s *orchestrator.Session) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg := config()
	if path, _ := cmd.Flags().GetString("dictionary"); strings.TrimSpace(path) != "" {
		cfg.DictionaryPath = path
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	threaded := a.Revive(ctx) && a.Platform().Isolated(ctx)
	session, err := a.NewSession(ctx, threaded)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(ctx, a, session)
}

func addDictionaryFlag(cmd *cobra.Command) {
	cmd.Flags().String("dictionary", "", "dictionary file (overrides dictionaryPath)")
}

// printFeed echoes the session's diagnostic lines, oldest first.
func printFeed(cmd *cobra.Command, s *orchestrator.Session) {
	if !DebugEnabled() {
		return
	}
	lines := s.Feed().Lines()
	for i := len(lines) - 1; i >= 0; i-- {
		fmt.Fprintln(cmd.ErrOrStderr(), noteLine(lines[i]))
	}
}
