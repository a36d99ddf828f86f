package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"morph/internal/converter"
	"morph/internal/metrics"
	"morph/internal/preset"
	"morph/internal/queue"
	"morph/internal/stats"
)

type fixedStats struct{ totals stats.Totals }

func (f fixedStats) Totals() (stats.Totals, error) { return f.totals, nil }

func newTestServer(t *testing.T) (*Server, *queue.Processor) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := converter.NewEngine(nil)
	p := queue.NewProcessor(engine)
	presets, err := preset.Open(filepath.Join(t.TempDir(), "presets.yaml"))
	if err != nil {
		t.Fatalf("open presets: %v", err)
	}

	s := New(Deps{
		Processor:     p,
		Engine:        engine,
		Stats:         fixedStats{stats.Totals{Conversions: 7}},
		Presets:       presets,
		Metrics:       metrics.New(prometheus.NewRegistry()),
		DefaultFormat: converter.FormatPNG,
		Defaults:      converter.DefaultOptions(),
	})
	t.Cleanup(func() {
		p.Clear()
		p.Wait()
		s.Close()
	})
	return s, p
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0xcc, G: uint8(x * 10), B: uint8(y * 10), A: 0xff})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

type queueResponse struct {
	Running bool             `json:"running"`
	Items   []queue.Snapshot `json:"items"`
}

func TestAddItemAndRunQueue(t *testing.T) {
	s, p := newTestServer(t)
	router := s.Router()
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	dst := filepath.Join(dir, "out", "photo.jpg")
	writePNG(t, src, 8, 6)

	rec := doJSON(t, router, http.MethodPost, "/api/queue/items", map[string]any{
		"source_path":      src,
		"destination_path": dst,
		"options":          map[string]any{"jpeg_quality": 50, "width": 4},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var snap queue.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Status != queue.StatusPending || snap.Options.JPEGQuality != 50 || snap.Options.PNGCompression != 6 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if p.IsRunning() {
		t.Fatal("adding an item must not start the queue")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/queue/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	p.Wait()

	rec = doJSON(t, router, http.MethodGet, "/api/queue", nil)
	var state queueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Running || len(state.Items) != 1 || state.Items[0].Status != queue.StatusCompleted {
		t.Fatalf("unexpected queue state %+v", state)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 4 || cfg.Height != 3 {
		t.Fatalf("expected 4x3 output, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestAddItemRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing fields", map[string]any{"source_path": "a.png"}, http.StatusBadRequest},
		{"unsupported source", map[string]any{"source_path": "a.bmp", "destination_path": "a.png"}, http.StatusBadRequest},
		{"unsupported destination", map[string]any{"source_path": "a.png", "destination_path": "a.tiff"}, http.StatusBadRequest},
		{"invalid options", map[string]any{"source_path": "a.png", "destination_path": "a.jpg", "options": map[string]any{"rotation": 45}}, http.StatusBadRequest},
		{"unknown preset", map[string]any{"source_path": "a.png", "destination_path": "a.jpg", "preset": "nope"}, http.StatusNotFound},
	}
	text := filepath.Join(t.TempDir(), "notes.png")
	if err := os.WriteFile(text, []byte("definitely not a png file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cases = append(cases, struct {
		name string
		body map[string]any
		want int
	}{"not an image", map[string]any{"source_path": text, "destination_path": "a.jpg"}, http.StatusBadRequest})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/queue/items", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body)
			}
		})
	}
}

func TestBatchUsesPreset(t *testing.T) {
	s, p := newTestServer(t)
	router := s.Router()
	src := t.TempDir()
	writePNG(t, filepath.Join(src, "a.png"), 2, 2)
	writePNG(t, filepath.Join(src, "sub", "b.png"), 2, 2)

	rec := doJSON(t, router, http.MethodPost, "/api/presets", map[string]any{
		"name":    "thumbs",
		"format":  "webp",
		"options": map[string]any{"jpeg_quality": 75, "webp_quality": 40, "png_compression": 6, "keep_aspect_ratio": true, "preserve_structure": true},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	dst := t.TempDir()
	rec = doJSON(t, router, http.MethodPost, "/api/queue/batch", map[string]any{
		"source_dir":      src,
		"destination_dir": dst,
		"preset":          "thumbs",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Added  int    `json:"added"`
		Format string `json:"format"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Added != 2 || resp.Format != "webp" {
		t.Fatalf("unexpected batch response %+v", resp)
	}

	items := p.Items()
	if items[1].DestinationPath != filepath.Join(dst, "sub", "b.webp") {
		t.Fatalf("expected mirrored destination, got %s", items[1].DestinationPath)
	}
	if items[0].Options.WebPQuality != 40 {
		t.Fatalf("expected preset options, got %+v", items[0].Options)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/queue/batch", map[string]any{
		"source_dir":      filepath.Join(src, "missing"),
		"destination_dir": dst,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing directory, got %d", rec.Code)
	}
}

func TestQueueControlsAreIdempotent(t *testing.T) {
	s, p := newTestServer(t)
	router := s.Router()

	for _, path := range []string{"/api/queue/pause", "/api/queue/clear", "/api/queue/clear", "/api/queue/pause"} {
		rec := doJSON(t, router, http.MethodPost, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	if p.IsRunning() || p.Len() != 0 {
		t.Fatal("expected idle empty queue")
	}
}

func TestPreview(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()
	src := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, src, 6, 4)

	rec := doJSON(t, router, http.MethodPost, "/api/preview", map[string]any{
		"source_path": src,
		"format":      "jpg",
		"options":     map[string]any{"rotation": 90},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", ct)
	}
	cfg, err := jpeg.DecodeConfig(rec.Body)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if cfg.Width != 4 || cfg.Height != 6 {
		t.Fatalf("expected rotated 4x6 preview, got %dx%d", cfg.Width, cfg.Height)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/preview", map[string]any{
		"source_path": filepath.Join(t.TempDir(), "gone.png"),
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing source, got %d", rec.Code)
	}
}

func TestStatsAndPresets(t *testing.T) {
	s, p := newTestServer(t)
	router := s.Router()
	p.Add(queue.NewItem("a.png", "a.jpg", converter.DefaultOptions()))

	rec := doJSON(t, router, http.MethodGet, "/api/stats", nil)
	var resp struct {
		Enabled bool                 `json:"enabled"`
		Queue   map[queue.Status]int `json:"queue"`
		Totals  stats.Totals         `json:"totals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Enabled || resp.Totals.Conversions != 7 || resp.Queue[queue.StatusPending] != 1 {
		t.Fatalf("unexpected stats %+v", resp)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/presets", map[string]any{"name": "bad", "format": "bmp"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/api/presets", map[string]any{
		"name": "gif", "format": "gif", "options": converter.DefaultOptions(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/presets", nil)
	if !strings.Contains(rec.Body.String(), `"name":"gif"`) {
		t.Fatalf("expected preset in list, got %s", rec.Body)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/presets/gif", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/api/presets/gif", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	doJSON(t, router, http.MethodGet, "/api/queue", nil)
	rec := doJSON(t, router, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `morph_api_requests_total{endpoint="/api/queue",method="GET",status="200"} 1`) {
		t.Fatalf("expected request counter, got:\n%s", rec.Body)
	}
}

func TestWebSocketStreamsEvents(t *testing.T) {
	s, p := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() WSResponse {
		t.Helper()
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatalf("deadline: %v", err)
		}
		var msg WSResponse
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != "state" {
		t.Fatalf("expected initial state, got %s", msg.Type)
	}

	p.Add(queue.NewItem("a.png", "a.jpg", converter.DefaultOptions()))
	if msg := read(); msg.Type != "item_added" {
		t.Fatalf("expected item_added, got %s", msg.Type)
	}

	if err := conn.WriteJSON(WSMessage{Type: "clear"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := read(); msg.Type != "cleared" {
		t.Fatalf("expected cleared, got %s", msg.Type)
	}
	if msg := read(); msg.Type != "state" {
		t.Fatalf("expected state after command, got %s", msg.Type)
	}
	if p.Len() != 0 {
		t.Fatalf("expected queue cleared over websocket, got %d", p.Len())
	}

	if err := conn.WriteJSON(WSMessage{Type: "explode"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := read(); msg.Error == "" {
		t.Fatalf("expected error for unknown command, got %+v", msg)
	}
}

func TestSlowWebSocketClientIsDropped(t *testing.T) {
	p := queue.NewProcessor(converter.NewEngine(nil))
	h := NewHub(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer h.Attach()()

	// A client whose writer never drains its queue.
	stuck := &client{send: make(chan []byte, clientBuffer)}
	h.clientsMux.Lock()
	h.clients[stuck] = true
	h.clientsMux.Unlock()

	returned := make(chan struct{})
	go func() {
		for i := 0; i < 2*clientBuffer; i++ {
			p.Add(queue.NewItem("a.png", "a.jpg", converter.DefaultOptions()))
		}
		p.Clear()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("queue operations blocked on a slow websocket client")
	}

	if n := h.ClientCount(); n != 0 {
		t.Fatalf("expected slow client to be dropped, %d left", n)
	}
	queued := 0
	for range stuck.send {
		queued++
	}
	if queued != clientBuffer {
		t.Fatalf("expected %d queued messages before the drop, got %d", clientBuffer, queued)
	}
}
