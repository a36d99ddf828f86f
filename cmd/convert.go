package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"morph/internal/converter"
	"morph/internal/stats"
)

var (
	convertFlags  optionFlags
	convertStdout bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <source> <destination>",
	Short: "Convert a single image; the destination extension picks the format",
	Long: "Convert a single image. The output format comes from the destination extension.\n" +
		"With --stdout only the source is given and the encoded image is written to standard output.",
	Args: func(cmd *cobra.Command, args []string) error {
		if convertStdout {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		format, opts, err := convertFlags.resolve(cmd)
		if err != nil {
			return err
		}
		engine := converter.NewEngine(appLogger)
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if convertStdout {
			data, err := engine.Convert(ctx, args[0], format, opts)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		started := time.Now()
		if err := engine.ConvertToFile(ctx, args[0], args[1], opts); err != nil {
			return err
		}
		recordSingle()

		fmt.Fprintf(os.Stdout, "%s -> %s (%s)\n", args[0], args[1], time.Since(started).Round(time.Millisecond))
		return nil
	},
}

// recordSingle counts a one-off conversion the same way a queue item is
// counted. Failures are logged, never returned.
func recordSingle() {
	if !cfg.Stats.Enabled {
		return
	}
	tracker, err := stats.Open(cfg.Stats.Path)
	if err != nil {
		appLogger.Warn("Statistics unavailable", "error", err)
		return
	}
	defer tracker.Close()
	if err := tracker.Record(time.Now()); err != nil {
		appLogger.Warn("Failed to record conversion", "error", err)
	}
}

func init() {
	convertFlags.bind(convertCmd, true)
	convertCmd.Flags().BoolVar(&convertStdout, "stdout", false, "write the converted image to standard output (preview)")
	rootCmd.AddCommand(convertCmd)
}
