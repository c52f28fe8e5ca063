package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/treasurylens/treasury-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status [ticker...]",
	Short: "Show current recorded values",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		companies, err := resolveCompanies(ctx, st, args)
		if err != nil {
			return err
		}

		var holdings []model.HoldingsRecord
		for _, c := range companies {
			hs, err := st.ListHoldings(ctx, c.Ticker)
			if err != nil {
				return eris.Wrapf(err, "list holdings for %s", c.Ticker)
			}
			holdings = append(holdings, hs...)
		}
		if len(holdings) == 0 {
			fmt.Fprintln(os.Stderr, "No recorded values. Run `treasury-cli reconcile` first.")
			return nil
		}

		formatHoldings(os.Stdout, holdings)
		return nil
	},
}

// formatHoldings writes a tabular view of holdings rows to w.
func formatHoldings(out io.Writer, holdings []model.HoldingsRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tFIELD\tVALUE\tUNIT\tAS_OF\tSOURCE\tUPDATED")
	for _, h := range holdings {
		asOf := ""
		if !h.AsOfDate.IsZero() {
			asOf = h.AsOfDate.Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\t%s\t%s\t%s\n",
			h.Ticker,
			h.Field,
			h.Value,
			h.Unit,
			asOf,
			h.SourceName,
			h.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
