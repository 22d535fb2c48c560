// Package commands implements the assertctl subcommands.
package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayush630/clinical-bert-api/internal/adapter/client"
)

const (
	defaultURL = "http://localhost:8000"
	urlEnv     = "CLINICAL_API_URL"
)

// globalOptions are shared by every subcommand
type globalOptions struct {
	url     string
	output  string
	timeout time.Duration
}

func (o *globalOptions) client() *client.AssertionClient {
	return client.NewAssertionClient(o.url, o.timeout)
}

func (o *globalOptions) validate() error {
	switch OutputFormat(o.output) {
	case FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", o.output)
	}
}

// NewRootCommand builds the assertctl command tree
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "assertctl",
		Short: "Clinical assertion classification client",
		Long: `assertctl talks to a running clinical assertion service.

It classifies whether a medical condition in a sentence is PRESENT,
ABSENT or CONDITIONAL.

Examples:
  assertctl health
  assertctl predict "The patient denies chest pain."
  assertctl batch --file notes.txt -o json
  assertctl examples`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
	}

	url := os.Getenv(urlEnv)
	if url == "" {
		url = defaultURL
	}

	rootCmd.PersistentFlags().StringVar(&opts.url, "url", url, "service base URL (env "+urlEnv+")")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", string(FormatYAML), "output format: yaml or json")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(newHealthCommand(opts))
	rootCmd.AddCommand(newPredictCommand(opts))
	rootCmd.AddCommand(newBatchCommand(opts))
	rootCmd.AddCommand(newExamplesCommand(opts))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
