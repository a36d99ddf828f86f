package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"morph/internal/batch"
	"morph/internal/converter"
	"morph/internal/preset"
	"morph/internal/queue"
	"morph/pkg/imgutil"
)

type itemRequest struct {
	SourcePath      string          `json:"source_path" binding:"required"`
	DestinationPath string          `json:"destination_path" binding:"required"`
	Preset          string          `json:"preset"`
	Options         json.RawMessage `json:"options"`
}

type batchRequest struct {
	SourceDir      string          `json:"source_dir" binding:"required"`
	DestinationDir string          `json:"destination_dir" binding:"required"`
	Format         string          `json:"format"`
	Preset         string          `json:"preset"`
	Options        json.RawMessage `json:"options"`
}

type previewRequest struct {
	SourcePath string          `json:"source_path" binding:"required"`
	Format     string          `json:"format"`
	Preset     string          `json:"preset"`
	Options    json.RawMessage `json:"options"`
}

func (s *Server) queueState(c *gin.Context, status int) {
	c.JSON(status, gin.H{
		"running": s.deps.Processor.IsRunning(),
		"items":   s.deps.Processor.Items(),
	})
}

func (s *Server) getQueue(c *gin.Context) {
	s.queueState(c, http.StatusOK)
}

func (s *Server) addItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if !converter.IsSupportedInput(req.SourcePath) {
		s.fail(c, fmt.Errorf("%w: source %s", converter.ErrUnsupportedFormat, req.SourcePath))
		return
	}
	if _, err := converter.FormatFromPath(req.DestinationPath); err != nil {
		s.fail(c, err)
		return
	}
	_, opts, err := s.resolve(req.Preset, "", req.Options)
	if err != nil {
		s.fail(c, err)
		return
	}

	src, err := filepath.Abs(req.SourcePath)
	if err != nil {
		s.fail(c, err)
		return
	}
	dst, err := filepath.Abs(req.DestinationPath)
	if err != nil {
		s.fail(c, err)
		return
	}

	// A missing source is accepted and fails when its turn comes; content
	// that is present but not an image is rejected now.
	if kind, err := imgutil.SniffFile(src); err == nil && kind == imgutil.KindUnknown {
		s.fail(c, fmt.Errorf("%w: %s is not an image", converter.ErrUnsupportedFormat, req.SourcePath))
		return
	}

	item := queue.NewItem(src, dst, opts)
	s.deps.Processor.Add(item)
	c.JSON(http.StatusCreated, item.Snapshot())
}

func (s *Server) addBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	format, opts, err := s.resolve(req.Preset, req.Format, req.Options)
	if err != nil {
		s.fail(c, err)
		return
	}

	n, err := batch.Populate(s.deps.Processor, batch.Request{
		SourceDir:      req.SourceDir,
		DestinationDir: req.DestinationDir,
		Format:         format,
		Options:        opts,
		Logger:         s.logger,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"added":  n,
		"format": format,
	})
}

func (s *Server) start(c *gin.Context) {
	s.deps.Processor.Start()
	s.queueState(c, http.StatusOK)
}

func (s *Server) pause(c *gin.Context) {
	s.deps.Processor.Pause()
	s.queueState(c, http.StatusOK)
}

func (s *Server) clear(c *gin.Context) {
	s.deps.Processor.Clear()
	s.queueState(c, http.StatusOK)
}

func (s *Server) preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	format, opts, err := s.resolve(req.Preset, req.Format, req.Options)
	if err != nil {
		s.fail(c, err)
		return
	}

	data, err := s.deps.Engine.Convert(c.Request.Context(), req.SourcePath, format, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (s *Server) getStats(c *gin.Context) {
	counts := make(map[queue.Status]int)
	for _, item := range s.deps.Processor.Items() {
		counts[item.Status]++
	}

	resp := gin.H{
		"enabled": s.deps.Stats != nil,
		"queue":   counts,
		"running": s.deps.Processor.IsRunning(),
	}
	if s.deps.Stats != nil {
		totals, err := s.deps.Stats.Totals()
		if err != nil {
			s.fail(c, err)
			return
		}
		resp["totals"] = totals
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listPresets(c *gin.Context) {
	if s.deps.Presets == nil {
		c.JSON(http.StatusOK, gin.H{"presets": []preset.Preset{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presets": s.deps.Presets.List()})
}

func (s *Server) savePreset(c *gin.Context) {
	if s.deps.Presets == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "presets are disabled"})
		return
	}

	var p preset.Preset
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.deps.Presets.Save(p); err != nil {
		s.fail(c, err)
		return
	}

	saved, err := s.deps.Presets.Get(p.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) deletePreset(c *gin.Context) {
	if s.deps.Presets == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "presets are disabled"})
		return
	}
	if err := s.deps.Presets.Delete(c.Param("name")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
