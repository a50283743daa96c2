package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/runstore"
)

func newHistoryCommand() *cobra.Command {
	var (
		db    string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversion runs",
		Long: `History lists the conversions recorded with 'generate --history',
newest first. 'history show <run-id>' prints the stored document.`,
		Example: `  # Last ten runs
  prdflow history --db runs.db

  # Everything
  prdflow history --db runs.db --limit 0`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := runstore.NewSQLiteStore(db)
			if err != nil {
				return fmt.Errorf("opening history store: %w", err)
			}
			defer store.Close()

			runs, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSOURCE\tSTRATEGY\tERRORS\tWARNINGS\tFIXES\tWHEN\tSIZE")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%d\n",
					r.ID, r.Source, r.Strategy, r.Errors, r.Warnings, r.Fixes,
					r.CreatedAt.Local().Format(time.DateTime), r.Size)
			}
			return w.Flush()
		},
	}

	cmd.PersistentFlags().StringVar(&db, "db", "runs.db", "SQLite history database")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum runs to list, 0 for all")

	cmd.AddCommand(newHistoryShowCommand(&db))

	return cmd
}

func newHistoryShowCommand(db *string) *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Print the document stored for a run",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := runstore.NewSQLiteStore(*db)
			if err != nil {
				return fmt.Errorf("opening history store: %w", err)
			}
			defer store.Close()

			run, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if len(run.Document) == 0 {
				return fmt.Errorf("run %s has no stored document", run.ID)
			}
			_, err = os.Stdout.Write(append(run.Document, '\n'))
			return err
		},
	}
}
