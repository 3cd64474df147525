package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/buswork-cli/internal/application"
	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/spf13/cobra"
)

type credentialFlags struct {
	username      string
	password      string
	passwordStdin bool
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "Operator username")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Operator password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
}

func (f *credentialFlags) resolvePassword(in io.Reader) (string, error) {
	if !f.passwordStdin {
		if f.password == "" {
			return "", errors.New("a password is required: pass --password-stdin or --password")
		}
		return f.password, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCmd(app *app) *cobra.Command {
	var flags credentialFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := flags.resolvePassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			console, release, err := app.newConsole(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if err := console.Login(cmd.Context(), flags.username, password); err != nil {
				return sessionFailure(cmd, console, err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", flags.username)
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

func newRegisterCmd(app *app) *cobra.Command {
	var flags credentialFlags

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an operator account",
		Long:  "Register an operator account. When no session is active the new operator is logged in; otherwise the current session is kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := flags.resolvePassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			console, release, err := app.newConsole(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if _, err := console.Restore(cmd.Context()); err != nil {
				return err
			}
			wasLoggedIn := console.Session.State() == domain.SessionLoggedIn

			err = console.Register(cmd.Context(), flags.username, password)
			if err != nil {
				return sessionFailure(cmd, console, err)
			}

			if err := printEntries(cmd.OutOrStdout(), console.Log.Snapshot()); err != nil {
				return err
			}
			if !wasLoggedIn && console.Session.State() == domain.SessionLoggedIn {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", flags.username)
			}
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			console, release, err := app.newConsole(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if _, err := console.Restore(cmd.Context()); err != nil {
				app.logger.Warn().Err(err).Msg("restore before logout")
			}
			if err := console.Logout(cmd.Context()); err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return err
		},
	}
}

// sessionFailure turns a failed login or registration into the error shown
// to the operator. A pending rejection is acknowledged once printed.
func sessionFailure(cmd *cobra.Command, console *application.Console, err error) error {
	if pending, ok := console.Errors.Pending(); ok {
		console.Errors.Acknowledge()
		return errors.New(pending.Message)
	}

	entries := console.Log.Snapshot()
	if len(entries) > 0 && !errors.Is(err, domain.ErrInvalidInput) {
		return errors.New(entries[len(entries)-1])
	}
	return err
}
