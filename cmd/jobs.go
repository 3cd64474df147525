package cmd

import (
	"encoding/json"
	"fmt"

	renderconsole "github.com/bnema/buswork-cli/internal/adapters/render/console"
	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/spf13/cobra"
)

type jobOutput struct {
	Command  string `json:"command"`
	Platform string `json:"platform"`
	Label    string `json:"label"`
}

func newJobsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List the jobs that can be dispatched",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalogue := domain.Catalogue()

			if asJSON {
				out := make([]jobOutput, 0, len(catalogue))
				for _, spec := range catalogue {
					out = append(out, jobOutput{Command: spec.Command.Name, Platform: string(spec.Platform), Label: spec.Label})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			rendered, err := renderconsole.RenderJobs(catalogue)
			if err != nil {
				return fmt.Errorf("render jobs: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalogue as JSON")

	return cmd
}
