package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"morph/internal/stats"
	"morph/internal/tui"
)

var statsReset bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many conversions have been performed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Stats.Enabled {
			return errors.New("statistics are disabled (stats.enabled: false)")
		}
		tracker, err := stats.Open(cfg.Stats.Path)
		if err != nil {
			return err
		}
		defer tracker.Close()

		if statsReset {
			return tracker.Reset()
		}

		totals, err := tracker.Totals()
		if err != nil {
			return err
		}
		last := "never"
		if totals.LastConversion != nil {
			last = totals.LastConversion.Local().Format(time.RFC1123)
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary([]tui.SummaryRow{
			{Label: "Conversions", Value: fmt.Sprintf("%d", totals.Conversions)},
			{Label: "Last conversion", Value: last},
			{Label: "Database", Value: cfg.Stats.Path},
		}))
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsReset, "reset", false, "zero the counter")
	rootCmd.AddCommand(statsCmd)
}
