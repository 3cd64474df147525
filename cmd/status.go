package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backendhttp "github.com/bnema/buswork-cli/internal/adapters/backend/http"
	renderconsole "github.com/bnema/buswork-cli/internal/adapters/render/console"
	"github.com/bnema/buswork-cli/internal/config"
	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/spf13/cobra"
)

type statusOutput struct {
	State     domain.SessionState `json:"state"`
	Username  string              `json:"username,omitempty"`
	IssuedAt  *time.Time          `json:"issued_at,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	APIURL    string              `json:"api_url"`
	Transport string              `json:"transport"`
}

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Long:  "Show the stored session. The credential is read locally; the backend is not contacted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			credential, err := app.store.Load(cmd.Context())
			loggedIn := err == nil
			if err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
				return fmt.Errorf("load credential: %w", err)
			}

			view := renderconsole.Status{
				State:           domain.SessionLoggedOut,
				APIURL:          app.cfg.APIURL,
				Transport:       app.cfg.Transport,
				CredentialStore: credentialStoreLabel(app),
			}
			if loggedIn {
				view.State = domain.SessionLoggedIn
				view.Username = credential.Username
				view.IssuedAt = credential.IssuedAt
				if info, err := backendhttp.InspectToken(credential.Token); err == nil {
					if view.Username == "" {
						view.Username = info.Username
					}
					if view.IssuedAt.IsZero() {
						view.IssuedAt = info.IssuedAt
					}
					view.ExpiresAt = info.ExpiresAt
				} else {
					app.logger.Debug().Err(err).Msg("session token is not a readable JWT")
				}
			}

			if asJSON {
				return writeStatusJSON(cmd, view)
			}

			rendered, err := renderconsole.RenderStatus(view, renderconsole.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session as JSON")

	return cmd
}

func writeStatusJSON(cmd *cobra.Command, view renderconsole.Status) error {
	out := statusOutput{
		State:     view.State,
		Username:  view.Username,
		APIURL:    view.APIURL,
		Transport: view.Transport,
	}
	if !view.IssuedAt.IsZero() {
		out.IssuedAt = &view.IssuedAt
	}
	if !view.ExpiresAt.IsZero() {
		out.ExpiresAt = &view.ExpiresAt
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func credentialStoreLabel(app *app) string {
	switch app.cfg.CredentialStore {
	case config.CredentialStoreFile:
		return app.fileStore.Path()
	case config.CredentialStorePass:
		return "pass"
	default:
		return "pass, falling back to " + app.fileStore.Path()
	}
}
