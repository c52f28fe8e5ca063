package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/treasurylens/treasury-cli/internal/fetcher"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import tracked companies from an XLSX or CSV file",
	Long:  "Loads the tracked company universe from a spreadsheet with columns: ticker, name, cik, asset. A header row is detected and skipped automatically.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sheet, _ := cmd.Flags().GetString("sheet")
		skipRows, _ := cmd.Flags().GetInt("skip-rows")

		path := args[0]
		opts := fetcher.TabularOptions{SheetName: sheet, SkipRows: skipRows}

		var rows [][]string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			rows, err = fetcher.ReadXLSX(path, opts)
		case ".csv":
			f, openErr := os.Open(path)
			if openErr != nil {
				return eris.Wrap(openErr, "open import file")
			}
			defer f.Close() //nolint:errcheck
			rows, err = fetcher.ReadCSV(f, opts)
		default:
			return eris.Errorf("unsupported file type %s (want .xlsx or .csv)", filepath.Ext(path))
		}
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		companies, skipped := parseCompanyRows(rows)
		if pg, ok := st.(*store.PostgresStore); ok {
			if _, err := pg.BulkImportCompanies(ctx, companies); err != nil {
				return err
			}
		} else {
			for _, c := range companies {
				if err := st.UpsertCompany(ctx, c); err != nil {
					return eris.Wrapf(err, "upsert company %s", c.Ticker)
				}
			}
		}

		zap.L().Info("import: companies loaded",
			zap.String("file", path),
			zap.Int("imported", len(companies)),
			zap.Int("skipped", skipped),
		)
		fmt.Printf("Imported %d companies (%d rows skipped)\n", len(companies), skipped)
		return nil
	},
}

// parseCompanyRows converts spreadsheet rows into companies. Rows missing a
// ticker are skipped; a leading header row is detected by its ticker cell.
func parseCompanyRows(rows [][]string) (companies []model.Company, skipped int) {
	for i, row := range rows {
		if len(row) == 0 || row[0] == "" {
			skipped++
			continue
		}
		if i == 0 && strings.EqualFold(row[0], "ticker") {
			continue
		}

		c := model.Company{Ticker: strings.ToUpper(row[0])}
		if len(row) > 1 {
			c.Name = row[1]
		}
		if len(row) > 2 {
			c.CIK = row[2]
		}
		if len(row) > 3 {
			c.Asset = strings.ToUpper(row[3])
		}
		companies = append(companies, c)
	}
	return companies, skipped
}

func init() {
	importCmd.Flags().String("sheet", "", "xlsx sheet name (default first sheet)")
	importCmd.Flags().Int("skip-rows", 0, "rows to skip before the data")
	rootCmd.AddCommand(importCmd)
}
