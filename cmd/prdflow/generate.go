package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nir-meir/prd-to-json/pkg/prdflow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/config"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/extract"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/llm"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/observability"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/runstore"
)

func newGenerateCommand() *cobra.Command {
	var (
		output    string
		strategy  string
		assistant string
		history   string
		indent    int
		noFix     bool
		strict    bool
		dryRun    bool
		mockLLM   bool
		pretty    bool
	)

	cmd := &cobra.Command{
		Use:   "generate <input.md>",
		Short: "Convert a PRD document into a flow definition",
		Long: `Generate parses the markdown document, picks a generation strategy
based on its complexity (or the --strategy override), builds the flow
graph, validates it, repairs what it can, and writes the composed JSON
document.

A document that still has validation errors after auto-fix is written
anyway, marked "invalid" in its metadata, and the command exits 1.`,
		Example: `  # Convert a PRD, print the flow JSON to stdout
  prdflow generate requirements.md

  # Write to a file, force the chunked strategy
  prdflow generate requirements.md -o flow.json -s chunked

  # Strict mode: warnings block too
  prdflow generate requirements.md --strict

  # Record the run in a local history database
  prdflow generate requirements.md --history runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(flagConfig)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("strategy") {
				settings.Strategy = strategy
			}
			if cmd.Flags().Changed("assistant") {
				settings.Assistant = assistant
			}
			if mockLLM {
				settings.Assistant = "mock"
			}
			if cmd.Flags().Changed("indent") {
				settings.Indent = indent
			}
			settings.Pretty = pretty
			if noFix {
				settings.AutoFix = false
			}
			if strict {
				settings.Strict = true
			}

			input, err := readInput(args[0])
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			opts := []prdflow.Option{
				prdflow.WithSettings(settings),
				prdflow.WithLogger(newLogger()),
				prdflow.WithMetrics(observability.NewMetricsRecorder()),
				prdflow.WithSpans(observability.NewSpanManager()),
				prdflow.WithSource(sourceName(args[0])),
			}
			if dryRun {
				opts = append(opts, prdflow.DryRun())
			}
			if a := newAssistant(settings.Assistant); a != nil {
				opts = append(opts, prdflow.WithAssistant(a))
			}
			if history != "" {
				store, err := runstore.NewSQLiteStore(history)
				if err != nil {
					return fmt.Errorf("opening history store: %w", err)
				}
				defer store.Close()
				opts = append(opts, prdflow.WithStore(store))
			}

			res, err := prdflow.New(opts...).Convert(cmd.Context(), input)

			if res != nil && dryRun && err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\nstrategy: %s\n", res.Summary, res.Strategy)
				return nil
			}
			if res != nil && res.JSON != nil {
				if werr := writeOutput(output, res.JSON); werr != nil {
					return werr
				}
			}
			if err != nil {
				reportFailure(err)
				return err
			}

			for _, w := range res.Report.Warnings() {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			for _, f := range res.Fixes {
				fmt.Fprintf(os.Stderr, "fixed: %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Generation strategy: simple, chunked, or hybrid (default: automatic)")
	cmd.Flags().StringVar(&assistant, "assistant", "", "Extraction assistant backend: claude or mock (default: none)")
	cmd.Flags().StringVar(&history, "history", "", "SQLite database to record this run in")
	cmd.Flags().IntVar(&indent, "indent", config.DefaultIndent, "Indent width for pretty output")
	cmd.Flags().BoolVar(&noFix, "no-fix", false, "Disable the auto-repair loop")
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat validation warnings as errors")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and summarize without generating")
	cmd.Flags().BoolVar(&mockLLM, "mock-llm", false, "Use the canned mock assistant instead of a real backend")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Indent the JSON output")

	return cmd
}

// newAssistant maps the configured assistant backend to a client. An
// unrecognized value falls back to no assistant; rule-based extraction
// still runs either way.
func newAssistant(backend string) extract.Assistant {
	switch backend {
	case "claude":
		client := llm.WithRetries(llm.NewClaudeCLI(), llm.DefaultRetry)
		return llm.NewAssistant(client)
	case "mock":
		return llm.NewAssistant(llm.NewMockClient(`{"features": []}`))
	}
	return nil
}

func sourceName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return filepath.Base(path)
}

func writeOutput(path string, data []byte) error {
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// reportFailure prints conversion errors: validation issues one per
// line, everything else as a single message in main.
func reportFailure(err error) {
	var verr *prdflow.ValidationError
	if errors.As(err, &verr) {
		for _, issue := range verr.Issues {
			fmt.Fprintf(os.Stderr, "%s\n", issue)
		}
		fmt.Fprintf(os.Stderr, "%s\n", verr)
	}
}
