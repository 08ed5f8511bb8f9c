package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maroofsyyed/Duesense1/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "duesense",
	Short: "Deal intelligence pipeline for venture investors",
	Long:  "Extracts pitch decks and company inputs, enriches them from public sources, scores the deal against a fixed rubric and writes a cited investment memo.",
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
