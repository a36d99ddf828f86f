// Package server exposes the conversion queue over HTTP and a websocket feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"morph/internal/batch"
	"morph/internal/converter"
	"morph/internal/metrics"
	"morph/internal/preset"
	"morph/internal/queue"
	"morph/internal/stats"
)

var errBadRequest = errors.New("invalid request")

// StatsReader is the read side of stats.Tracker.
type StatsReader interface {
	Totals() (stats.Totals, error)
}

// Deps are the collaborators the server routes to. Stats, Presets and
// Metrics may be nil; their routes then report the feature as disabled.
type Deps struct {
	Processor     *queue.Processor
	Engine        *converter.Engine
	Stats         StatsReader
	Presets       *preset.Store
	Metrics       *metrics.Metrics
	DefaultFormat converter.Format
	Defaults      converter.Options
	Logger        *slog.Logger
}

type Server struct {
	deps   Deps
	hub    *Hub
	logger *slog.Logger
	detach []func()
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.DefaultFormat == "" {
		deps.DefaultFormat = converter.FormatPNG
	}

	s := &Server{
		deps:   deps,
		hub:    NewHub(deps.Processor, logger),
		logger: logger,
	}
	s.detach = append(s.detach, s.hub.Attach(), deps.Processor.Subscribe(reportFailures))
	if deps.Metrics != nil {
		s.detach = append(s.detach, deps.Metrics.Attach(deps.Processor))
	}
	return s
}

// reportFailures sends failed items to Sentry. Without sentry.Init it is a
// no-op.
func reportFailures(ev queue.Event) {
	if ev.Kind != queue.EventItemUpdated || ev.Item.Status != queue.StatusFailed {
		return
	}
	item := ev.Item
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("item_id", item.ID)
		if f, err := converter.FormatFromPath(item.DestinationPath); err == nil {
			scope.SetTag("format", f.String())
		}
		scope.SetExtra("source_path", item.SourcePath)
		scope.SetExtra("destination_path", item.DestinationPath)
		sentry.CaptureMessage("conversion failed: " + item.Message)
	})
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	{
		api.GET("/queue", s.getQueue)
		api.POST("/queue/items", s.addItem)
		api.POST("/queue/batch", s.addBatch)
		api.POST("/queue/start", s.start)
		api.POST("/queue/pause", s.pause)
		api.POST("/queue/clear", s.clear)
		api.POST("/preview", s.preview)
		api.GET("/stats", s.getStats)
		api.GET("/presets", s.listPresets)
		api.POST("/presets", s.savePreset)
		api.DELETE("/presets/:name", s.deletePreset)
	}

	router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})
	if s.deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	return router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close detaches from the processor and drops websocket clients.
func (s *Server) Close() {
	for _, fn := range s.detach {
		fn()
	}
	s.detach = nil
	s.hub.Close()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		elapsed := time.Since(started)
		status := c.Writer.Status()

		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordAPIRequest(endpoint, c.Request.Method, strconv.Itoa(status), elapsed.Seconds())
		}
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"elapsed", elapsed,
		)
	}
}

// errorStatus maps conversion errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, converter.ErrUnsupportedFormat),
		errors.Is(err, batch.ErrNotDirectory),
		errors.Is(err, preset.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, preset.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, converter.ErrDecode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

// resolve picks the format and options for a request: server defaults, then
// the named preset, then any fields present in raw.
func (s *Server) resolve(presetName, format string, raw json.RawMessage) (converter.Format, converter.Options, error) {
	f := s.deps.DefaultFormat
	opts := s.deps.Defaults

	if presetName != "" {
		if s.deps.Presets == nil {
			return "", opts, fmt.Errorf("%w: presets are disabled", errBadRequest)
		}
		p, err := s.deps.Presets.Get(presetName)
		if err != nil {
			return "", opts, err
		}
		f, opts = p.Format, p.Options
	}
	if format != "" {
		parsed, err := converter.ParseFormat(format)
		if err != nil {
			return "", opts, err
		}
		f = parsed
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return "", opts, fmt.Errorf("%w: options: %w", errBadRequest, err)
		}
	}
	if err := opts.Validate(); err != nil {
		return "", opts, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return f, opts, nil
}
