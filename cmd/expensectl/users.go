package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"spendwise/internal/auth"
	"spendwise/internal/log"
	"spendwise/internal/storage"

	"github.com/spf13/cobra"
)

func newAddUserCommand(stdin io.Reader, resolveDB func(*cobra.Command) string) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if password == "" {
				fmt.Fprint(out, "Password: ")
				var err error
				password, err = readPassword(stdin)
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				fmt.Fprintln(out) // Print newline after password input
			}
			if strings.TrimSpace(password) == "" {
				return fmt.Errorf("password cannot be empty")
			}

			return addUser(cmd.Context(), out, resolveDB(cmd), username, email, password)
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "username (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address used to log in (required)")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted for when omitted)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func addUser(ctx context.Context, out io.Writer, dbPath, username, email, password string) error {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" {
		return fmt.Errorf("username and email cannot be empty")
	}

	db, err := storage.NewDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := db.CreateUser(ctx, username, email, hash)
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("user %s or email %s already exists", username, email)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(out, "User %s created successfully with ID %d\n", user.Username, user.ID)
	return nil
}

func newDelUserCommand(resolveDB func(*cobra.Command) string, logger *log.Logger) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "deluser",
		Short: "Delete a user account with its expenses and categories",
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

			if err := db.DeleteUser(ctx, user.ID); err != nil {
				return fmt.Errorf("failed to delete user: %w", err)
			}
			logger.Info("Deleted user", "username", user.Username, log.FieldUserID, user.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "User %s deleted\n", user.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "username (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
