package cmd

import (
	"os"

	"github.com/bnema/buswork-cli/internal/adapters/tui"
	"github.com/bnema/buswork-cli/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newDashboardCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:         "dashboard",
		Aliases:     []string{"ui"},
		Short:       "Open the interactive console",
		Long:        "Open the interactive console: log in or register, pick jobs from the menu and follow the live activity log. Diagnostics go to ~/.buswork/bw.log unless BUSWORK_LOG_FILE is set.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationFileLogging: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			console, release, err := app.newConsole(ctx)
			if err != nil {
				return err
			}
			defer release()

			if _, err := console.Restore(ctx); err != nil {
				app.logger.Warn().Err(err).Msg("restore session")
			}

			program := tui.NewProgram(tui.Config{
				Context: ctx,
				Console: console,
				Session: console.Session,
				Log:     console.Log,
				Errors:  console.Errors,
				Jobs:    domain.Catalogue(),
			}, tuiProgramOptions(cmd)...)

			watcher, err := app.watchCredential(ctx, console, program.SessionChanged)
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Close() }()

			app.serveMetrics(ctx)

			updates, unsubscribe := console.Log.Subscribe()
			defer unsubscribe()

			return program.Run(ctx, updates)
		},
	}
}

// tuiProgramOptions keeps the terminal defaults unless the command streams
// were redirected.
func tuiProgramOptions(cmd *cobra.Command) []tea.ProgramOption {
	var opts []tea.ProgramOption
	if in := cmd.InOrStdin(); in != os.Stdin {
		opts = append(opts, tea.WithInput(in))
	}
	if out := cmd.OutOrStdout(); out != os.Stdout {
		opts = append(opts, tea.WithOutput(out))
	}
	return opts
}
