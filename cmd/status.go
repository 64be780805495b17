package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blue-raster/workforce-bridge/internal/runlog"
)

var (
	statusLimit int
	statusYAML  bool
)

// statusSummary is the YAML shape of `status --yaml`.
type statusSummary struct {
	Checkpoint *time.Time   `yaml:"checkpoint"`
	Runs       []runlog.Run `yaml:"runs"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint and recent run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cp, err := st.Checkpoint(ctx)
		if err != nil {
			return err
		}
		runs, err := st.RecentRuns(ctx, statusLimit)
		if err != nil {
			return err
		}

		if statusYAML {
			return yaml.NewEncoder(os.Stdout).Encode(statusSummary{Checkpoint: cp, Runs: runs})
		}

		if cp == nil {
			fmt.Println("Checkpoint: none (no completed runs)")
		} else {
			fmt.Printf("Checkpoint: %s\n", cp.Format(time.RFC3339))
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tWINDOW\tRECORDS\tUPLOADED\tFAILED\tSKIPPED\tERROR")
		for _, r := range runs {
			window := fmt.Sprintf("%s .. %s",
				r.WindowStart.Format("2006-01-02 15:04"),
				r.WindowEnd.Format("2006-01-02 15:04"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				r.ID, r.Status, window, r.Records, r.Uploaded, r.Failed, r.Skipped, r.Error)
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "maximum runs to show")
	statusCmd.Flags().BoolVar(&statusYAML, "yaml", false, "emit YAML instead of a table")
	rootCmd.AddCommand(statusCmd)
}
