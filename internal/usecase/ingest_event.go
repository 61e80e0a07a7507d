package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
	"github.com/SoyunJu/LogCollector-sub000/internal/fingerprint"
)

// EventIngester accepts submitted events.
type EventIngester interface {
	Ingest(ctx context.Context, event *domain.ErrorEvent) error
}

// IngestEventUseCase validates and enqueues submitted events, writing them
// straight to the stores when the queue cannot take them.
type IngestEventUseCase struct {
	queue    domain.EventQueue
	fallback Recorder
	metrics  *metrics.PipelineMetrics
	clock    clock.Clock
	logger   *slog.Logger
}

func NewIngestEventUseCase(queue domain.EventQueue, fallback Recorder, m *metrics.PipelineMetrics, clk clock.Clock, logger *slog.Logger) *IngestEventUseCase {
	return &IngestEventUseCase{
		queue:    queue,
		fallback: fallback,
		metrics:  m,
		clock:    clk,
		logger:   logger.With("component", "ingest"),
	}
}

// Ingest validates and enriches event in place, then hands it to the queue or
// the fallback. Only invalid events produce an error; once accepted, delivery
// problems are logged and counted.
func (uc *IngestEventUseCase) Ingest(ctx context.Context, event *domain.ErrorEvent) error {
	ctx, span := tracer.Start(ctx, "IngestEvent")
	defer span.End()

	if err := event.Validate(); err != nil {
		return err
	}
	if level := fingerprint.EffectiveLevel(event.LogLevel, event.Message); !fingerprint.IsTargetLevel(level) {
		return fmt.Errorf("%w: level %s is not collected", domain.ErrInvalidEvent, level)
	}

	// 1. Enrich with server-side data
	event.ReceivedAt = uc.clock.Now().UTC()
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = event.ReceivedAt
	}
	span.SetAttributes(attribute.String("event.id", event.EventID))

	// 2. Enqueue, unless the health check already knows the queue is down
	if !uc.queue.IsAvailable() {
		uc.metrics.Enqueue("skipped")
		uc.writeDirect(ctx, event, domain.ErrQueueUnavailable)
		return nil
	}

	payload, err := domain.EncodeEvent(*event)
	if err != nil {
		uc.metrics.Enqueue("failure")
		uc.writeDirect(ctx, event, err)
		return nil
	}
	if err := uc.queue.Push(ctx, payload); err != nil {
		uc.metrics.Enqueue("failure")
		uc.writeDirect(ctx, event, err)
		return nil
	}
	uc.metrics.Enqueue("success")
	return nil
}

func (uc *IngestEventUseCase) writeDirect(ctx context.Context, event *domain.ErrorEvent, cause error) {
	uc.logger.Warn("Queue unavailable, writing event directly", "event_id", event.EventID, "cause", cause)
	if _, err := uc.fallback.Record(ctx, *event); err != nil {
		uc.metrics.Fallback("failure")
		uc.logger.Error("Direct write failed, potential data loss",
			"event_id", event.EventID, "service_name", event.ServiceName, "error", err)
		return
	}
	uc.metrics.Fallback("success")
}
