package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runSkipDigest bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one bridge cycle",
	Long:  "Queries maintenance records due in the current window, uploads the resulting assignments, and records the run. Sends the daily digest when the cycle lands on the configured digest hour.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		runner, st, err := initRunner(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := runner.Run(ctx); err != nil {
			return err
		}

		if !runSkipDigest && runner.DigestDue(time.Now()) {
			if err := runner.Digest(ctx); err != nil {
				zap.L().Error("digest failed", zap.Error(err))
			}
		}

		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSkipDigest, "skip-digest", false, "never send the daily digest from this cycle")
	rootCmd.AddCommand(runCmd)
}
