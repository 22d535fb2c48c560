package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newBatchCommand(opts *globalOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch [sentence...]",
		Short: "Classify sentences in a single batch request",
		Long: `Classify sentences in a single batch request.

Sentences come from the arguments, or from --file with one sentence
per line. Blank lines are skipped. Use --file - to read stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sentences := args
			if file != "" {
				fromFile, err := loadSentences(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				sentences = append(sentences, fromFile...)
			}
			if len(sentences) == 0 {
				return errors.New("no sentences given; pass them as arguments or use --file")
			}

			resp, err := opts.client().PredictBatch(cmd.Context(), sentences)
			if err != nil {
				return err
			}
			if len(resp.Predictions) != len(sentences) {
				return fmt.Errorf("service returned %d predictions for %d sentences", len(resp.Predictions), len(sentences))
			}

			results := make([]sentenceResult, len(sentences))
			for i, pred := range resp.Predictions {
				results[i] = sentenceResult{Sentence: sentences[i], Label: pred.Label, Score: pred.Score}
			}
			return outputResult(cmd.OutOrStdout(), results, OutputFormat(opts.output))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one sentence per line")

	return cmd
}

func loadSentences(path string, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return readSentences(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sentence file: %w", err)
	}
	defer f.Close()
	return readSentences(f)
}

// readSentences returns the non-blank lines of r, trimmed
func readSentences(r io.Reader) ([]string, error) {
	var sentences []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sentences = append(sentences, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sentences: %w", err)
	}
	return sentences, nil
}
