package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/treasurylens/treasury-cli/internal/model"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage the tracked company universe",
}

// -- companies list --

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked companies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		companies, err := st.ListCompanies(ctx)
		if err != nil {
			return eris.Wrap(err, "companies list")
		}
		if len(companies) == 0 {
			fmt.Fprintln(os.Stderr, "No companies tracked.")
			return nil
		}

		formatCompanies(os.Stdout, companies)
		return nil
	},
}

// -- companies add --

var companiesAddCmd = &cobra.Command{
	Use:   "add <ticker>",
	Short: "Add or update a tracked company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		name, _ := cmd.Flags().GetString("name")
		cik, _ := cmd.Flags().GetString("cik")
		asset, _ := cmd.Flags().GetString("asset")

		c := model.Company{
			Ticker: strings.ToUpper(args[0]),
			Name:   name,
			CIK:    cik,
			Asset:  strings.ToUpper(asset),
		}
		if err := st.UpsertCompany(ctx, c); err != nil {
			return eris.Wrapf(err, "add company %s", c.Ticker)
		}

		fmt.Printf("Tracking %s\n", c.Ticker)
		return nil
	},
}

// formatCompanies writes a tabular list of companies to w.
func formatCompanies(out io.Writer, companies []model.Company) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tNAME\tCIK\tASSET")
	for _, c := range companies {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Ticker, c.Name, c.CIK, c.Asset)
	}
	_ = w.Flush()
}

func init() {
	companiesAddCmd.Flags().String("name", "", "company name")
	companiesAddCmd.Flags().String("cik", "", "SEC CIK number")
	companiesAddCmd.Flags().String("asset", "BTC", "treasury asset symbol")

	companiesCmd.AddCommand(companiesListCmd)
	companiesCmd.AddCommand(companiesAddCmd)
	rootCmd.AddCommand(companiesCmd)
}
