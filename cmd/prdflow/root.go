package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Global flags shared by all subcommands.
var (
	flagVerbose bool
	flagConfig  string
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prdflow",
		Short: "Convert PRD markdown into conversation-flow JSON",
		Long: `prdflow reads a product-requirements document written in markdown,
extracts its features, variables, APIs, and business rules, and generates
a validated conversation-flow definition as JSON.

Run 'prdflow generate requirements.md' to convert a document.
Run 'prdflow validate flow.json' to re-check an existing export.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging on stderr")
	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to a converter config file (YAML)")

	cmd.AddCommand(newGenerateCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newHistoryCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// newLogger builds the CLI logger: JSON records on stderr, debug level
// when --verbose is set, warnings and up otherwise.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// readInput reads the document: a file path, or stdin for "-".
func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
