package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sunbase-energy/sitescout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sitescout",
	Short: "Property-data scraping orchestrator",
	Long:  "Resolves a street address and fans out across Zillow, Regrid, the ASCE hazard tool, and public APIs for jurisdiction, utility rates, and nearby weather stations with climate design values.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

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
