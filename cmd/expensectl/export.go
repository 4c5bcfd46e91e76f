package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"spendwise/internal/classifier"
	"spendwise/internal/log"
	"spendwise/internal/storage"

	"github.com/spf13/cobra"
)

// newExportCommand writes a user's labelled expenses as a training set that
// train --data accepts.
func newExportCommand(resolveDB func(*cobra.Command) string, logger *log.Logger) *cobra.Command {
	var username, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's categorized expenses as a training set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.NewDB(resolveDB(cmd))
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			user, err := db.GetUserByUsername(ctx, username)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("user %s does not exist", username)
			}
			if err != nil {
				return fmt.Errorf("failed to look up user: %w", err)
			}

			expenses, err := db.ListExpenses(ctx, user.ID)
			if err != nil {
				return fmt.Errorf("failed to list expenses: %w", err)
			}

			var samples []classifier.Sample
			skipped := 0
			for _, e := range expenses {
				category := strings.TrimSpace(e.Category)
				if category == "" || category == classifier.Uncategorized {
					skipped++
					continue
				}
				samples = append(samples, classifier.Sample{Name: e.Name, Category: category})
			}
			if len(samples) == 0 {
				return fmt.Errorf("user %s has no categorized expenses", username)
			}

			data, err := classifier.MarshalSamples(samples)
			if err != nil {
				return fmt.Errorf("failed to encode training set: %w", err)
			}

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
			} else {
				err = os.WriteFile(outPath, data, 0o644)
			}
			if err != nil {
				return fmt.Errorf("failed to write training set: %w", err)
			}
			logger.Info("Exported training set",
				"username", user.Username, "examples", len(samples), "skipped", skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "username (required)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (stdout when omitted)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
