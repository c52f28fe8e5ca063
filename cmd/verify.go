package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/verify"
)

// verifiedHolding pairs a holdings row with its drift check outcome.
type verifiedHolding struct {
	Holding model.HoldingsRecord
	Result  model.VerificationResult
}

var verifyCmd = &cobra.Command{
	Use:   "verify [ticker...]",
	Short: "Re-check recorded values against their cited sources",
	Long:  "Re-resolves each recorded value from structured filings where possible, and falls back to checking that the cited source URL is still reachable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		field, _ := cmd.Flags().GetString("field")

		companies, err := resolveCompanies(ctx, e.Store, args)
		if err != nil {
			return err
		}

		verifier := verify.New(e.Facts, e.Fetch)

		var results []verifiedHolding
		for _, company := range companies {
			holdings, err := e.Store.ListHoldings(ctx, company.Ticker)
			if err != nil {
				return eris.Wrapf(err, "list holdings for %s", company.Ticker)
			}
			for _, h := range holdings {
				if field != "" && h.Field != field {
					continue
				}
				res := verifier.Verify(ctx, company, h.Field, h.Value, h.SourceURL)
				results = append(results, verifiedHolding{Holding: h, Result: res})
			}
		}

		if len(results) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to verify.")
			return nil
		}
		formatVerifications(os.Stdout, results)

		for _, r := range results {
			if r.Result.Status == model.StatusSourceDrift || r.Result.Status == model.StatusSourceInvalid {
				return eris.Errorf("%d of %d records failed verification", countFailed(results), len(results))
			}
		}
		return nil
	},
}

func countFailed(results []verifiedHolding) int {
	n := 0
	for _, r := range results {
		if r.Result.Status == model.StatusSourceDrift || r.Result.Status == model.StatusSourceInvalid {
			n++
		}
	}
	return n
}

// formatVerifications writes a tabular view of drift check results to w.
func formatVerifications(out io.Writer, results []verifiedHolding) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tFIELD\tRECORDED\tSOURCE\tSTATUS\tNOTE")
	for _, r := range results {
		source := ""
		if r.Result.SourceFetchedValue != nil {
			source = fmt.Sprintf("%.0f", *r.Result.SourceFetchedValue)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\t%s\t%s\n",
			r.Holding.Ticker,
			r.Holding.Field,
			r.Holding.Value,
			source,
			r.Result.Status,
			r.Result.Error,
		)
	}
	_ = w.Flush()
}

func init() {
	verifyCmd.Flags().String("field", "", "verify only this field")
	rootCmd.AddCommand(verifyCmd)
}
