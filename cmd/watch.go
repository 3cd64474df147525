package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	tomlstore "github.com/bnema/buswork-cli/internal/adapters/credential/toml"
	"github.com/bnema/buswork-cli/internal/application"
	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream progress of all jobs",
		Long:  "Stream the progress lines the backend publishes for every job until interrupted. The stream ends if the stored session is removed by another bw process.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			console, release, err := app.newConsole(ctx)
			if err != nil {
				return err
			}
			defer release()

			if err := requireSession(ctx, console); err != nil {
				return err
			}

			watcher, err := app.watchCredential(ctx, console, nil)
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Close() }()

			app.serveMetrics(ctx)

			credential, _ := console.Session.Active()
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching progress as %s (ctrl+c to stop)\n", credential.Username)

			err = followLog(ctx, cmd.OutOrStdout(), console)
			if errors.Is(err, errChannelClosed) && console.Session.State() != domain.SessionLoggedIn {
				fmt.Fprintln(cmd.ErrOrStderr(), "Session ended")
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop watching after this long (0 watches until interrupted)")

	return cmd
}

// watchCredential logs the console out when the session file is removed by
// another process. then, when set, runs after the logout.
func (a *app) watchCredential(ctx context.Context, console *application.Console, then func()) (*tomlstore.Watcher, error) {
	watcher, err := tomlstore.NewWatcher(a.fileStore.Path(), func() {
		if err := console.CredentialRevoked(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("logout after credential removal")
		}
		if then != nil {
			then()
		}
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("watch session file: %w", err)
	}
	return watcher, nil
}
