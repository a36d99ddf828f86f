package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"morph/internal/batch"
	"morph/internal/converter"
	"morph/internal/queue"
	"morph/internal/stats"
	"morph/internal/tui"
)

var (
	batchFlags optionFlags
	batchNoTUI bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [flags] <source-dir> <destination-dir>",
	Short: "Convert every supported image under a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, opts, err := batchFlags.resolve(cmd)
		if err != nil {
			return err
		}

		logger := appLogger
		if !batchNoTUI {
			quiet, closeLog, err := quietLogger()
			if err != nil {
				return err
			}
			defer closeLog()
			logger = quiet
		}

		procOpts := []queue.Option{queue.WithLogger(logger)}
		if cfg.Stats.Enabled {
			tracker, err := stats.Open(cfg.Stats.Path)
			if err != nil {
				return err
			}
			defer tracker.Close()
			recorder, err := stats.NewRecorder(tracker, logger)
			if err != nil {
				return err
			}
			defer recorder.Close()
			procOpts = append(procOpts, queue.WithRecorder(recorder))
		}

		p := queue.NewProcessor(converter.NewEngine(logger), procOpts...)
		n, err := batch.Populate(p, batch.Request{
			SourceDir:      args[0],
			DestinationDir: args[1],
			Format:         format,
			Options:        opts,
			Logger:         logger,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintf(os.Stdout, "No images to convert to %s under %s\n", format, args[0])
			return nil
		}

		started := time.Now()
		if batchNoTUI {
			runHeadless(p)
		} else if err := runInteractive(p); err != nil {
			return err
		}

		items := p.Items()
		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.QueueSummary(items, time.Since(started))))
		if failures := tui.RenderFailures(items); failures != "" {
			fmt.Fprintln(os.Stdout, failures)
		}
		return nil
	},
}

// runInteractive shows the queue view and starts the run. Quitting the view
// pauses the queue and waits for the in-flight item.
func runInteractive(p *queue.Processor) error {
	events, stop := tui.Feed(p)
	defer stop()

	model := tui.NewModel(p, events)
	model.ExitWhenDone = true
	program := tea.NewProgram(model)

	p.Start()
	_, err := program.Run()
	p.Pause()
	p.Wait()
	return err
}

// runHeadless drains the queue, pausing on SIGINT or SIGTERM.
func runHeadless(p *queue.Processor) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.Pause()
		case <-done:
		}
	}()

	p.Start()
	p.Wait()
	close(done)
}

func init() {
	batchFlags.bind(batchCmd, true)
	batchCmd.Flags().BoolVar(&batchNoTUI, "no-tui", false, "log progress instead of showing the terminal UI")
	rootCmd.AddCommand(batchCmd)
}
