package usecase

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain/mocks"
)

var testStart = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// pipeline wires every use case against in-memory stores.
type pipeline struct {
	clock     *clock.Mock
	queue     *mocks.MockEventQueue
	ignored   *mocks.MockIgnoreMarker
	errorLogs *mocks.ErrorLogStore
	incidents *mocks.IncidentStore
	notifier  *mocks.MockNotifier

	recorder  *RecordOccurrenceUseCase
	ingest    *IngestEventUseCase
	consumer  *ProcessEventsUseCase
	bridge    *IncidentBridgeUseCase
	outbox    *OutboxDrainUseCase
	lifecycle *LifecycleUseCase
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := slogDiscard()
	clk := clock.NewMock()
	clk.Set(testStart)

	p := &pipeline{
		clock:     clk,
		queue:     &mocks.MockEventQueue{},
		ignored:   &mocks.MockIgnoreMarker{},
		errorLogs: mocks.NewErrorLogStore(),
		incidents: mocks.NewIncidentStore(),
		notifier:  &mocks.MockNotifier{},
	}
	p.recorder = NewRecordOccurrenceUseCase(p.errorLogs, p.incidents, p.incidents,
		DraftThresholds{HostSpread: 3, HighRecur: 100}, nil, clk, logger)
	p.ingest = NewIngestEventUseCase(p.queue, p.recorder, nil, clk, logger)
	p.consumer = NewProcessEventsUseCase(p.queue, p.ignored, p.recorder, p.notifier,
		ProcessEventsConfig{BatchSize: 50, PopTimeout: time.Millisecond, NotifyRepeatThreshold: 10}, nil, clk, logger)
	p.bridge = NewIncidentBridgeUseCase(p.incidents, p.incidents, p.errorLogs, 2*time.Hour, nil, clk, logger)
	p.outbox = NewOutboxDrainUseCase(p.incidents, p.errorLogs, p.ignored,
		OutboxConfig{BatchSize: 50, MaxAttempts: 3, BackoffBase: time.Minute, BackoffMax: 2 * time.Hour}, nil, clk, logger)
	p.lifecycle = NewLifecycleUseCase(p.incidents, p.incidents, 7*24*time.Hour, nil, clk, logger)
	return p
}

func paymentEvent(host, message string) domain.ErrorEvent {
	return domain.ErrorEvent{
		ServiceName: "payment-api",
		HostName:    host,
		LogLevel:    "ERROR",
		Message:     message,
		OccurredAt:  testStart,
	}
}

// enqueue pushes events straight onto the mock queue, bypassing the guard.
func (p *pipeline) enqueue(t *testing.T, events ...domain.ErrorEvent) {
	t.Helper()
	for _, e := range events {
		if e.ReceivedAt.IsZero() {
			e.ReceivedAt = testStart
		}
		b, err := domain.EncodeEvent(e)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		p.queue.Items = append(p.queue.Items, b)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
