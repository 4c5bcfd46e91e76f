// Command expensectl administers a Spendwise installation: user accounts and
// the category model. Results go to stdout, diagnostics to stderr.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"spendwise/internal/classifier"
	"spendwise/internal/log"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultDBPath = "expenses.db"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := log.DefaultConfig()
	cfg.Component = log.ComponentCLI
	cfg.Output = stderr
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := log.ParseLevel(v)
		if err != nil {
			return err
		}
		cfg.Level = level
	}

	root := newRootCommand(stdin, log.New(cfg))
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(context.Background())
}

func newRootCommand(stdin io.Reader, logger *log.Logger) *cobra.Command {
	var dbPath string

	rootCmd := &cobra.Command{
		Use:   "expensectl",
		Short: "Administer Spendwise users and the category model",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to database file (DB_PATH overrides the default)")

	// The flag wins when given explicitly; otherwise DB_PATH replaces the
	// default.
	resolveDB := func(cmd *cobra.Command) string {
		if !cmd.Flags().Changed("db") {
			if path := os.Getenv("DB_PATH"); path != "" {
				return path
			}
		}
		return dbPath
	}

	rootCmd.AddCommand(
		newAddUserCommand(stdin, resolveDB),
		newDelUserCommand(resolveDB, logger),
		newExportCommand(resolveDB, logger),
		newTrainCommand(),
		newPredictCommand(),
	)
	return rootCmd
}

// artifactPath returns the value of env when set, else the default file name.
func artifactPath(env, def string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

func defaultVectorizerPath() string {
	return artifactPath("VECTORIZER_PATH", classifier.VectorizerFile)
}

func defaultModelPath() string {
	return artifactPath("MODEL_PATH", classifier.ModelFile)
}

func readPassword(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
