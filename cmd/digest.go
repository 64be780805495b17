package main

import (
	"github.com/spf13/cobra"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Send the daily assignment digest now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		runner, st, err := initRunner(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runner.Digest(ctx)
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
}
