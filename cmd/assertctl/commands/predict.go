package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sentenceResult pairs an input sentence with its prediction
type sentenceResult struct {
	Sentence string  `json:"sentence" yaml:"sentence"`
	Label    string  `json:"label" yaml:"label"`
	Score    float64 `json:"score" yaml:"score"`
}

func newPredictCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <sentence>...",
		Short: "Classify sentences one request at a time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			results := make([]sentenceResult, 0, len(args))
			for _, sentence := range args {
				pred, err := c.Predict(cmd.Context(), sentence)
				if err != nil {
					return fmt.Errorf("predict %q: %w", sentence, err)
				}
				results = append(results, sentenceResult{Sentence: sentence, Label: pred.Label, Score: pred.Score})
			}
			return outputResult(cmd.OutOrStdout(), results, OutputFormat(opts.output))
		},
	}
}
