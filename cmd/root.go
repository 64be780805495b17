package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blue-raster/workforce-bridge/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "workforce-bridge",
	Short: "Bridge maintenance records into workforce assignments",
	Long:  "Polls a maintenance-record feature service, transforms qualifying records into workforce assignments, uploads them with attachments, and emails urgent alerts and daily digests.",
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
