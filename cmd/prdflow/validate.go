package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nir-meir/prd-to-json/pkg/prdflow"
)

func newValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <flow.json>",
		Short: "Re-validate an existing flow document",
		Long: `Validate parses a previously exported flow document and runs the
full validation pass over it: graph structure, node rules, exits, the
variable namespace, condition expressions, and reachability.

Exits 0 when the document is publishable, 1 when it is not.`,
		Example: `  # Check an export
  prdflow validate flow.json

  # Warnings count as failures too
  prdflow validate flow.json --strict`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}

			report, err := prdflow.ValidateDocument(data, strict)
			if err != nil {
				return err
			}

			for _, issue := range report.Issues {
				fmt.Fprintf(os.Stderr, "%s\n", issue)
			}
			if !report.Valid() {
				return &prdflow.ValidationError{Issues: report.Issues}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d warnings)\n",
				args[0], len(report.Warnings()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat validation warnings as errors")

	return cmd
}
