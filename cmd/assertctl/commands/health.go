package commands

import (
	"github.com/spf13/cobra"
)

func newHealthCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show service health and model status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := opts.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), health, OutputFormat(opts.output))
		},
	}
}
