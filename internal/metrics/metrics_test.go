package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"morph/internal/converter"
	"morph/internal/queue"
)

type scriptedConverter map[string]error

func (s scriptedConverter) ConvertToFile(_ context.Context, src, _ string, _ converter.Options) error {
	return s[src]
}

func TestAttachTracksOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	p := queue.NewProcessor(scriptedConverter{
		"b": errors.New("corrupt"),
		"c": converter.ErrCancelled,
	})
	detach := m.Attach(p)
	defer detach()

	for _, name := range []string{"a", "b", "c"} {
		p.Add(queue.NewItem(name, name+".png", converter.DefaultOptions()))
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 3 {
		t.Fatalf("expected depth 3, got %v", got)
	}

	p.Start()
	p.Wait()

	if got := testutil.ToFloat64(m.ItemsTotal.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed, got %v", got)
	}
	if got := testutil.ToFloat64(m.ItemsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed, got %v", got)
	}
	if got := testutil.ToFloat64(m.ItemsTotal.WithLabelValues("cancelled")); got != 1 {
		t.Fatalf("expected 1 cancelled, got %v", got)
	}
	if got := testutil.ToFloat64(m.ItemsInFlight); got != 0 {
		t.Fatalf("expected nothing in flight, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 1 {
		t.Fatalf("expected the cancelled item pending, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueRunning); got != 0 {
		t.Fatalf("expected idle gauge, got %v", got)
	}
}

func TestQueueDepthFollowsEvents(t *testing.T) {
	m := New(prometheus.NewRegistry())
	p := queue.NewProcessor(scriptedConverter{})
	p.Add(queue.NewItem("before", "before.png", converter.DefaultOptions()))

	detach := m.Attach(p)
	defer detach()
	if got := testutil.ToFloat64(m.QueueDepth); got != 1 {
		t.Fatalf("expected existing item counted, got %v", got)
	}

	p.Add(
		queue.NewItem("a", "a.png", converter.DefaultOptions()),
		queue.NewItem("b", "b.png", converter.DefaultOptions()),
	)
	if got := testutil.ToFloat64(m.QueueDepth); got != 3 {
		t.Fatalf("expected depth 3, got %v", got)
	}

	p.Start()
	p.Wait()
	if got := testutil.ToFloat64(m.QueueDepth); got != 0 {
		t.Fatalf("expected drained queue, got %v", got)
	}

	p.Add(queue.NewItem("c", "c.png", converter.DefaultOptions()))
	p.Clear()
	if got := testutil.ToFloat64(m.QueueDepth); got != 0 {
		t.Fatalf("expected cleared queue, got %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordAPIRequest("/api/queue", "GET", "200", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), `morph_api_requests_total{endpoint="/api/queue",method="GET",status="200"} 1`) {
		t.Fatalf("expected api counter in output, got:\n%s", body)
	}
}
