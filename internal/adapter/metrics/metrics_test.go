package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestPipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.Enqueue("success")
	m.Enqueue("success")
	m.Fallback("failure")
	m.Outbox("IGNORE", "success")
	m.SetQueueDepth("queue", 7)
	m.SetQueueAvailable(true)
	m.ObserveLag(time.Now().Add(-time.Second), time.Now())

	if got := value(t, m.EnqueueTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("enqueue success = %v, want 2", got)
	}
	if got := value(t, m.FallbackTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("fallback failure = %v, want 1", got)
	}
	if got := value(t, m.QueueDepth.WithLabelValues("queue")); got != 7 {
		t.Errorf("queue depth = %v, want 7", got)
	}
	if got := value(t, m.QueueAvailable); got != 1 {
		t.Errorf("queue available = %v, want 1", got)
	}
}

func TestPipelineMetrics_Nil(t *testing.T) {
	var m *PipelineMetrics
	m.Enqueue("success")
	m.Consumed("processed")
	m.AutoClosed(3)
	m.Drafts("created", 1)
	m.SetQueueAvailable(false)
	m.ObserveLag(time.Now(), time.Now())
}
