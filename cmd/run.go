package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/buswork-cli/internal/application"
	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newRunCmd(app *app) *cobra.Command {
	var (
		follow  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Dispatch a job",
		Long:  "Dispatch a job from the catalogue (see `bw jobs`). With --follow, progress is streamed until interrupted.",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			names := make([]string, 0, len(domain.Catalogue()))
			for _, spec := range domain.Catalogue() {
				names = append(names, spec.Command.Name)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := domain.ParseJobCommand(args[0])
			if err != nil {
				return fmt.Errorf("%w (see `bw jobs`)", err)
			}

			console, release, err := app.newConsole(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if err := requireSession(cmd.Context(), console); err != nil {
				return err
			}

			message, err := runDispatchSpinner(cmd.Context(), cmd.ErrOrStderr(), "Dispatching "+command.Name+"...", func(ctx context.Context) (string, error) {
				return console.Dispatch(ctx, command)
			})
			if err != nil {
				return err
			}

			if !follow {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), message)
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return followLog(ctx, cmd.OutOrStdout(), console)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream progress after dispatching")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop following after this long (0 follows until interrupted)")

	return cmd
}

func requireSession(ctx context.Context, console *application.Console) error {
	restored, err := console.Restore(ctx)
	if err != nil {
		return err
	}
	if !restored {
		return fmt.Errorf("%w: run `bw login` first", domain.ErrNotLoggedIn)
	}
	return nil
}
