package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
	"github.com/SoyunJu/LogCollector-sub000/internal/fingerprint"
)

const (
	defaultBatchSize  = 50
	defaultPopTimeout = 2 * time.Second
)

// ProcessEventsConfig tunes one consumer worker.
type ProcessEventsConfig struct {
	BatchSize             int
	PopTimeout            time.Duration
	NotifyRepeatThreshold int64
}

// ProcessEventsUseCase drains the ingestion queue into the stores. It holds no
// per-batch state, so several workers may share one instance.
type ProcessEventsUseCase struct {
	queue    domain.EventQueue
	ignored  domain.IgnoreMarker
	recorder Recorder
	notifier domain.Notifier
	cfg      ProcessEventsConfig
	metrics  *metrics.PipelineMetrics
	clock    clock.Clock
	logger   *slog.Logger
}

func NewProcessEventsUseCase(
	queue domain.EventQueue,
	ignored domain.IgnoreMarker,
	recorder Recorder,
	notifier domain.Notifier,
	cfg ProcessEventsConfig,
	m *metrics.PipelineMetrics,
	clk clock.Clock,
	logger *slog.Logger,
) *ProcessEventsUseCase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	return &ProcessEventsUseCase{
		queue:    queue,
		ignored:  ignored,
		recorder: recorder,
		notifier: notifier,
		cfg:      cfg,
		metrics:  m,
		clock:    clk,
		logger:   logger.With("component", "consumer"),
	}
}

// ProcessBatch pops up to BatchSize events and handles each one. It stops early
// when the queue stays empty for PopTimeout. Per-event failures go to the DLQ
// and never end the batch; only a queue read error is returned.
func (uc *ProcessEventsUseCase) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "ProcessBatch")
	defer span.End()

	popped := 0
	for popped < uc.cfg.BatchSize {
		if ctx.Err() != nil {
			break
		}
		payload, err := uc.queue.Pop(ctx, uc.cfg.PopTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return popped, fmt.Errorf("failed to read from queue: %w", err)
		}
		if payload == nil {
			break
		}
		popped++
		uc.handle(ctx, payload)
	}

	span.SetAttributes(attribute.Int("batch.size", popped))
	if popped > 0 {
		uc.logger.Debug("Processed batch", "count", popped)
	}
	return popped, nil
}

func (uc *ProcessEventsUseCase) handle(ctx context.Context, payload []byte) {
	event, err := domain.DecodeEvent(payload)
	if err != nil {
		uc.metrics.Consumed("undecodable")
		uc.logger.Warn("Undecodable payload, moving to DLQ", "error", err)
		uc.deadLetter(ctx, payload, "")
		return
	}

	key := fingerprint.Fingerprint(event.ServiceName, event.Message, event.StackTrace)
	ignored, err := uc.ignored.IsIgnored(ctx, key)
	if err != nil {
		uc.logger.Warn("Failed to check ignored set, processing anyway", "log_hash", key, "error", err)
	}
	if ignored {
		uc.metrics.Consumed("ignored")
		return
	}

	out, err := uc.recorder.Record(ctx, event)
	if err != nil {
		uc.metrics.Consumed("failed")
		uc.logger.Error("Failed to record event, moving to DLQ", "event_id", event.EventID, "log_hash", key, "error", err)
		uc.deadLetter(ctx, payload, event.EventID)
		return
	}

	switch {
	case out.Skipped:
		uc.metrics.Consumed("skipped")
		return
	case out.Ignored:
		uc.metrics.Consumed("ignored")
		return
	}
	uc.metrics.Consumed("processed")
	if !event.ReceivedAt.IsZero() {
		uc.metrics.ObserveLag(event.ReceivedAt, uc.clock.Now())
	}

	if domain.ShouldNotify(out.Result, uc.cfg.NotifyRepeatThreshold) {
		n := domain.NewNotification(event.ServiceName, out.Key, out.Result)
		if err := uc.notifier.Notify(ctx, n); err != nil {
			uc.metrics.Notification("failure")
			uc.logger.Warn("Failed to send notification", "log_hash", out.Key, "error", err)
			return
		}
		uc.metrics.Notification("success")
	}
}

func (uc *ProcessEventsUseCase) deadLetter(ctx context.Context, payload []byte, eventID string) {
	if err := uc.queue.DeadLetter(ctx, payload); err != nil {
		uc.metrics.DeadLetter("failure")
		uc.logger.Error("Failed to push to DLQ, potential data loss", "event_id", eventID, "error", err)
		return
	}
	uc.metrics.DeadLetter("success")
}
