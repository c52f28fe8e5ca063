package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/treasurylens/treasury-cli/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect reconciliation run history",
	Long:  "Commands for listing past batch runs and showing the decisions they recorded.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reconciliation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the decisions recorded by a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		decisions, err := st.ListDecisions(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if len(decisions) == 0 {
			fmt.Fprintln(os.Stderr, "No decisions recorded for this run.")
			return nil
		}

		formatDecisions(os.Stdout, decisions)
		return nil
	},
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tPROCESSED\tUPDATED\tREVIEW\tUNCHANGED\tERRORS")
	for _, r := range runs {
		dur := r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			truncateID(r.RunID),
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			r.Processed,
			r.Updated,
			r.NeedsReview,
			r.Unchanged,
			r.Errors,
		)
	}
	_ = w.Flush()
}

// formatDecisions writes a tabular list of run decisions to w.
func formatDecisions(out io.Writer, decisions []model.Decision) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tFIELD\tOUTCOME\tOLD\tNEW\tREASON")
	for _, d := range decisions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.0f\t%s\n",
			d.Ticker,
			d.Field,
			d.Outcome,
			d.OldValue,
			d.NewValue,
			d.Reason,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
