package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/orchestrator"
)

var (
	reconcileDryRun bool
	reconcileFields []string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [ticker...]",
	Short: "Reconcile tracked facts against fresh source claims",
	Long:  "Runs the structured and filing-text claim paths for each tracked company, cross-validates, and applies guarded updates. With no tickers the full universe is processed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		companies, err := resolveCompanies(ctx, e.Store, args)
		if err != nil {
			return err
		}
		if len(companies) == 0 {
			fmt.Fprintln(os.Stderr, "No companies tracked. Add some with `treasury-cli import`.")
			return nil
		}

		var probe orchestrator.Prober
		if p := e.prober(); p != nil {
			probe = p
		}
		orch := orchestrator.New(e.Store, e.Facts, probe, cfg.Reconcile, orchestrator.Options{
			DryRun: reconcileDryRun,
		})

		sum := orch.Run(ctx, companies, reconcileFields)
		formatRunSummary(os.Stdout, sum)
		return nil
	},
}

// formatRunSummary writes the batch outcome counts to w.
func formatRunSummary(out io.Writer, s model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", s.RunID)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "Updated:\t%d\n", s.Updated)
	_, _ = fmt.Fprintf(w, "Needs review:\t%d\n", s.NeedsReview)
	_, _ = fmt.Fprintf(w, "Unchanged:\t%d\n", s.Unchanged)
	_, _ = fmt.Fprintf(w, "Errors:\t%d\n", s.Errors)
	for _, te := range s.ErrorList {
		_, _ = fmt.Fprintf(w, "  %s:\t%s\n", te.Ticker, te.Err)
	}
	_ = w.Flush()
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "evaluate guards and record decisions without writing holdings")
	reconcileCmd.Flags().StringSliceVar(&reconcileFields, "fields", []string{model.FieldHoldings, model.FieldSharesOutstanding}, "fields to reconcile")
	rootCmd.AddCommand(reconcileCmd)
}
