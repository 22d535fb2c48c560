package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type referenceCase struct {
	Sentence string
	Expected string
}

// referenceCases are the sentences the service is expected to get right
var referenceCases = []referenceCase{
	{"The patient denies chest pain.", "ABSENT"},
	{"He has a history of hypertension.", "PRESENT"},
	{"If the patient experiences dizziness, reduce the dosage.", "CONDITIONAL"},
	{"No signs of pneumonia were observed.", "ABSENT"},
}

func newExamplesCommand(opts *globalOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Run the reference sentences against the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			c := opts.client()

			printHeader(w, "Health Check")
			health, err := c.Health(ctx)
			if err != nil {
				return fmt.Errorf("%w (is the service running at %s?)", err, opts.url)
			}
			if err := outputResult(w, health, OutputFormat(opts.output)); err != nil {
				return err
			}

			printHeader(w, "Single Predictions")
			matched := 0
			for _, tc := range referenceCases {
				pred, err := c.Predict(ctx, tc.Sentence)
				if err != nil {
					printCheck(w, false, fmt.Sprintf("%s: %v", tc.Sentence, err))
					continue
				}
				ok := pred.Label == tc.Expected
				if ok {
					matched++
				}
				printCheck(w, ok, tc.Sentence)
				printDim(w, "  Label: %s (expected: %s)", pred.Label, tc.Expected)
				printDim(w, "  Score: %.4f", pred.Score)
			}

			printHeader(w, "Batch Prediction")
			sentences := make([]string, len(referenceCases))
			for i, tc := range referenceCases {
				sentences[i] = tc.Sentence
			}
			resp, err := c.PredictBatch(ctx, sentences)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Processed %d sentences:\n", len(resp.Predictions))
			for i, pred := range resp.Predictions {
				fmt.Fprintf(w, "  %d. %s (score: %.4f)\n", i+1, pred.Label, pred.Score)
			}

			fmt.Fprintf(w, "\n%d/%d reference sentences matched\n", matched, len(referenceCases))
			if strict && matched != len(referenceCases) {
				return fmt.Errorf("%d of %d reference sentences mismatched", len(referenceCases)-matched, len(referenceCases))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any prediction differs from the expected label")

	return cmd
}
