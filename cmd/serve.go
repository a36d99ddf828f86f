package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"morph/internal/converter"
	"morph/internal/metrics"
	"morph/internal/preset"
	"morph/internal/queue"
	"morph/internal/server"
	"morph/internal/stats"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversion queue behind an HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		defaultFormat, err := converter.ParseFormat(cfg.Defaults.Format)
		if err != nil {
			return err
		}

		if cfg.Sentry.DSN != "" {
			if err := sentry.Init(sentry.ClientOptions{
				Dsn:         cfg.Sentry.DSN,
				Environment: cfg.Sentry.Environment,
				Release:     "morph",
			}); err != nil {
				return fmt.Errorf("sentry.Init: %w", err)
			}
			// Flush buffered events before the program terminates.
			defer sentry.Flush(2 * time.Second)
		}

		deps := server.Deps{
			DefaultFormat: defaultFormat,
			Defaults:      cfg.Defaults.Options,
			Logger:        appLogger,
		}

		procOpts := []queue.Option{queue.WithLogger(appLogger)}
		if cfg.Stats.Enabled {
			tracker, err := stats.Open(cfg.Stats.Path)
			if err != nil {
				return err
			}
			defer tracker.Close()
			recorder, err := stats.NewRecorder(tracker, appLogger)
			if err != nil {
				return err
			}
			defer recorder.Close()
			procOpts = append(procOpts, queue.WithRecorder(recorder))
			deps.Stats = tracker
		}

		presets, err := preset.Open(cfg.Presets.Path)
		if err != nil {
			return err
		}
		deps.Presets = presets

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		deps.Metrics = metrics.New(reg)

		deps.Engine = converter.NewEngine(appLogger)
		deps.Processor = queue.NewProcessor(deps.Engine, procOpts...)

		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		srv := server.New(deps)
		err = srv.Run(ctx, cfg.Server.Addr)

		// Let the in-flight item finish so its output is not left half written.
		deps.Processor.Pause()
		deps.Processor.Wait()
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}
