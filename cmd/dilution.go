package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/treasurylens/treasury-cli/internal/resilience"
)

var dilutionCmd = &cobra.Command{
	Use:   "dilution <ticker>",
	Short: "Check a company for dilutive instruments",
	Long:  "Compares basic vs diluted share counts from the company's current filings to flag convertible notes, options, and other dilutive instruments.",
	Args:  cobra.ExactArgs(1),
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

		res, err := e.Facts.Dilution(ctx, companies[0])
		if err != nil {
			if resilience.IsNotFound(err) {
				fmt.Fprintf(os.Stderr, "%s: no share count data in filings\n", companies[0].Ticker)
				return nil
			}
			return eris.Wrap(err, "dilution check")
		}
		if res == nil {
			fmt.Fprintf(os.Stderr, "%s: basic or diluted series unresolvable\n", companies[0].Ticker)
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(dilutionCmd)
}
