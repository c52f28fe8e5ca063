package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/treasurylens/treasury-cli/internal/discrepancy"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/verify"
)

var discrepancyCmd = &cobra.Command{
	Use:   "discrepancy",
	Short: "Compare recorded values against external sources",
	Long:  "Commands for running cross-source comparisons and listing past discrepancy records.",
}

// -- discrepancy check --

var discrepancyCheckCmd = &cobra.Command{
	Use:   "check [ticker...]",
	Short: "Check recorded holdings against configured external sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		field, _ := cmd.Flags().GetString("field")
		withVerify, _ := cmd.Flags().GetBool("verify")

		companies, err := resolveCompanies(ctx, e.Store, args)
		if err != nil {
			return err
		}

		engine := discrepancy.NewEngine(e.Registry, cfg.Reconcile)
		verifier := verify.New(e.Facts, e.Fetch)

		var records []model.DiscrepancyRecord
		for _, company := range companies {
			holding, err := e.Store.GetHolding(ctx, company.Ticker, field)
			if err != nil {
				return eris.Wrapf(err, "read holding %s/%s", company.Ticker, field)
			}
			if holding == nil {
				fmt.Fprintf(os.Stderr, "%s: no recorded %s, skipping\n", company.Ticker, field)
				continue
			}

			rec, srcErrs := engine.Check(ctx, company, field, holding.Value)
			for _, se := range srcErrs {
				zap.L().Warn("discrepancy: source failed",
					zap.String("ticker", company.Ticker),
					zap.String("source", se.Source),
					zap.Error(se.Err),
				)
			}
			if rec == nil {
				continue
			}

			if withVerify {
				res := verifier.Verify(ctx, company, field, holding.Value, holding.SourceURL)
				rec.Verification = &res
			}
			if err := e.Store.AppendDiscrepancy(ctx, *rec); err != nil {
				return eris.Wrap(err, "append discrepancy")
			}
			records = append(records, *rec)
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No discrepancies found.")
			return nil
		}
		formatDiscrepancies(os.Stdout, records)
		return nil
	},
}

// -- discrepancy list --

var discrepancyListCmd = &cobra.Command{
	Use:   "list [ticker]",
	Short: "List past discrepancy records",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ticker := ""
		if len(args) == 1 {
			ticker = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		records, err := st.ListDiscrepancies(ctx, ticker, limit)
		if err != nil {
			return eris.Wrap(err, "discrepancy list")
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No discrepancy records.")
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		formatDiscrepancies(os.Stdout, records)
		return nil
	},
}

// formatDiscrepancies writes a tabular view of discrepancy records to w.
func formatDiscrepancies(out io.Writer, records []model.DiscrepancyRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tFIELD\tOURS\tMAX_DEV\tSEVERITY\tSOURCES\tVERIFIED\tCHECKED")
	for _, r := range records {
		verified := ""
		if r.Verification != nil {
			verified = string(r.Verification.Status)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f\t%.2f%%\t%s\t%d\t%s\t%s\n",
			r.Ticker,
			r.Field,
			r.OurValue,
			r.MaxDeviationPct*100,
			r.Severity,
			len(r.SourceValues),
			verified,
			r.CheckedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func init() {
	discrepancyCheckCmd.Flags().String("field", model.FieldHoldings, "field to compare")
	discrepancyCheckCmd.Flags().Bool("verify", false, "also re-verify our value against its cited source")

	discrepancyListCmd.Flags().Int("limit", 50, "max number of records to display")
	discrepancyListCmd.Flags().Bool("json", false, "emit full records as JSON")

	discrepancyCmd.AddCommand(discrepancyCheckCmd)
	discrepancyCmd.AddCommand(discrepancyListCmd)
	rootCmd.AddCommand(discrepancyCmd)
}
