package main

import (
	"fmt"
	"strings"

	"spendwise/internal/classifier"

	"github.com/spf13/cobra"
)

func newTrainCommand() *cobra.Command {
	var dataPath, vectorizerPath, modelPath string
	opts := classifier.DefaultTrainOptions()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the category model and write its artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			samples := classifier.DefaultSamples()
			if dataPath != "" {
				var err error
				samples, err = classifier.LoadSamplesFile(dataPath)
				if err != nil {
					return fmt.Errorf("failed to load training data: %w", err)
				}
			}

			model, err := classifier.Train(samples, opts)
			if err != nil {
				return err
			}
			if err := model.Save(vectorizerPath, modelPath); err != nil {
				return err
			}

			fmt.Fprintf(out, "Trained on %d examples across %d categories\n", len(samples), len(model.Classes()))
			fmt.Fprintf(out, "Training accuracy: %.1f%%\n", 100*model.Accuracy(cmd.Context(), samples))
			fmt.Fprintf(out, "Wrote %s and %s\n", vectorizerPath, modelPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "YAML training set (built-in set when omitted)")
	cmd.Flags().StringVar(&vectorizerPath, "vectorizer", defaultVectorizerPath(), "vectorizer artifact path")
	cmd.Flags().StringVar(&modelPath, "model", defaultModelPath(), "model artifact path")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", opts.Iterations, "gradient descent iterations")
	cmd.Flags().Float64Var(&opts.C, "c", opts.C, "inverse regularization strength")

	return cmd
}

func newPredictCommand() *cobra.Command {
	var vectorizerPath, modelPath string

	cmd := &cobra.Command{
		Use:   "predict <name>...",
		Short: "Print the category the model assigns to an expense name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := classifier.Load(vectorizerPath, modelPath)
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")
			category, err := model.Predict(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, category)
			return nil
		},
	}

	cmd.Flags().StringVar(&vectorizerPath, "vectorizer", defaultVectorizerPath(), "vectorizer artifact path")
	cmd.Flags().StringVar(&modelPath, "model", defaultModelPath(), "model artifact path")

	return cmd
}
