package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	app := newApp()

	rootCmd := &cobra.Command{
		Use:           "bw",
		Short:         "Buswork console (bw): log in, dispatch sync jobs and follow their progress",
		Long:          "bw is the operator console for the Buswork sync backend. It keeps an operator session, dispatches the catalogue of price, stock and catalogue jobs, and streams the progress the backend reports.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			app.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(flagAPIURL, "", "Backend base URL (env BUSWORK_API_URL)")
	flags.String(flagTransport, "", "Progress transport: sse or redis (env BUSWORK_TRANSPORT)")
	flags.String(flagLogLevel, "", "Diagnostic log level: trace, debug, info, warn, error (env BUSWORK_LOG_LEVEL)")
	app.bindFlags(rootCmd)

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newRegisterCmd(app),
		newLogoutCmd(app),
		newStatusCmd(app),
		newJobsCmd(),
		newRunCmd(app),
		newWatchCmd(app),
		newDashboardCmd(app),
		newStubBackendCmd(app),
	)

	return rootCmd
}
