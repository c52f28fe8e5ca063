package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/treasurylens/treasury-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "treasury-cli",
	Short: "Multi-source fact reconciliation for corporate crypto treasuries",
	Long:  "Reconciles tracked treasury facts against SEC structured data, filing text via Claude extraction, and external dashboards, with guarded auto-updates and a full audit trail.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
