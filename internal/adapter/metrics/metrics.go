package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "log_collector"

// PipelineMetrics holds all Prometheus metrics for the ingestion pipeline.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	IngestTotal        *prometheus.CounterVec
	EnqueueTotal       *prometheus.CounterVec
	FallbackTotal      *prometheus.CounterVec
	ConsumedTotal      *prometheus.CounterVec
	DeadLetterTotal    *prometheus.CounterVec
	RecordTotal        *prometheus.CounterVec
	PersistLag         prometheus.Histogram
	NotificationsTotal *prometheus.CounterVec
	OutboxTotal        *prometheus.CounterVec
	AutoClosedTotal    prometheus.Counter
	DraftsTotal        *prometheus.CounterVec
	QueueDepth         *prometheus.GaugeVec
	QueueAvailable     prometheus.Gauge
}

// NewPipelineMetrics initializes and registers the metrics on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	f := promauto.With(reg)
	return &PipelineMetrics{
		IngestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of submitted events by status.",
		}, []string{"status"}), // status: accepted, invalid, error_parse, error_size, error_media_type
		EnqueueTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "enqueue_total",
			Help:      "Queue push attempts by result.",
		}, []string{"result"}), // result: success, failure, skipped
		FallbackTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "db_fallback_total",
			Help:      "Direct store writes after queue failure, by result.",
		}, []string{"result"}), // result: success, failure
		ConsumedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "events_total",
			Help:      "Events popped by the consumer, by outcome.",
		}, []string{"outcome"}), // outcome: processed, ignored, skipped, failed, undecodable
		DeadLetterTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "dead_letter_total",
			Help:      "Dead-letter pushes by result.",
		}, []string{"result"}),
		RecordTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "record_total",
			Help:      "Aggregation writes by result.",
		}, []string{"result"}), // result: success, skipped, ignored, failure
		PersistLag: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "persist_lag_seconds",
			Help:      "Time between event receipt and aggregation.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Chat notifications by result.",
		}, []string{"result"}),
		OutboxTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "entries_total",
			Help:      "Outbox deliveries by action and result.",
		}, []string{"action", "result"}),
		AutoClosedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "auto_closed_total",
			Help:      "Incidents closed after their grace period.",
		}),
		DraftsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "drafts_total",
			Help:      "System drafts by operation.",
		}, []string{"op"}), // op: created, deleted
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Current length of the ingestion queue and DLQ.",
		}, []string{"queue"}),
		QueueAvailable: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "available",
			Help:      "1 when the queue backend is reachable, 0 otherwise.",
		}),
	}
}

func (m *PipelineMetrics) Ingest(status string) {
	if m != nil {
		m.IngestTotal.WithLabelValues(status).Inc()
	}
}

func (m *PipelineMetrics) Enqueue(result string) {
	if m != nil {
		m.EnqueueTotal.WithLabelValues(result).Inc()
	}
}

func (m *PipelineMetrics) Fallback(result string) {
	if m != nil {
		m.FallbackTotal.WithLabelValues(result).Inc()
	}
}

func (m *PipelineMetrics) Consumed(outcome string) {
	if m != nil {
		m.ConsumedTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *PipelineMetrics) DeadLetter(result string) {
	if m != nil {
		m.DeadLetterTotal.WithLabelValues(result).Inc()
	}
}

func (m *PipelineMetrics) Record(result string) {
	if m != nil {
		m.RecordTotal.WithLabelValues(result).Inc()
	}
}

func (m *PipelineMetrics) ObserveLag(receivedAt, now time.Time) {
	if m != nil && !receivedAt.IsZero() {
		m.PersistLag.Observe(now.Sub(receivedAt).Seconds())
	}
}

func (m *PipelineMetrics) Notification(result string) {
	if m != nil {
		m.NotificationsTotal.WithLabelValues(result).Inc()
	}
}

func (m *PipelineMetrics) Outbox(action, result string) {
	if m != nil {
		m.OutboxTotal.WithLabelValues(action, result).Inc()
	}
}

func (m *PipelineMetrics) AutoClosed(n int) {
	if m != nil {
		m.AutoClosedTotal.Add(float64(n))
	}
}

func (m *PipelineMetrics) Drafts(op string, n int64) {
	if m != nil {
		m.DraftsTotal.WithLabelValues(op).Add(float64(n))
	}
}

func (m *PipelineMetrics) SetQueueDepth(queue string, depth int64) {
	if m != nil {
		m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
	}
}

func (m *PipelineMetrics) SetQueueAvailable(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.QueueAvailable.Set(1)
	} else {
		m.QueueAvailable.Set(0)
	}
}
