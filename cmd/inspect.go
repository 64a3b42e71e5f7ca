package cmd

import (
	"fmt"

	"cohortmatch/internal/report"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <artifact>",
	Short: "Print a summary of a persisted run artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		artifact, err := report.NewRepository(args[0]).Load()
		if err != nil {
			return err
		}

		fmt.Printf("run %s (%s, %s)\n", artifact.RunID, artifact.Method, artifact.RunTimestamp.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("pairs: %d, unmatched profiles: %d, unmatched records: %d\n",
			len(artifact.Pairs), len(artifact.UnmatchedProfiles), len(artifact.UnmatchedRecords))

		d := artifact.Diagnostics
		fmt.Printf("tiers: excellent=%d good=%d fair=%d poor=%d\n",
			d.TierCounts.Excellent, d.TierCounts.Good, d.TierCounts.Fair, d.TierCounts.Poor)
		fmt.Printf("age gap: mean=%.2f median=%.2f within 2y=%.0f%% within 5y=%.0f%%\n",
			d.MeanGap, d.MedianGap, d.Within2*100, d.Within5*100)
		fmt.Printf("quality index: %.3f\n", d.QualityIndex)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
