package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
	"github.com/SoyunJu/LogCollector-sub000/internal/fingerprint"
)

// Recorder persists one accepted event into the stores.
type Recorder interface {
	Record(ctx context.Context, event domain.ErrorEvent) (RecordOutcome, error)
}

// RecordOutcome describes what Record did with an event.
type RecordOutcome struct {
	Key string
	// Skipped is set when the effective level is not collected.
	Skipped bool
	// Ignored is set when the incident is IGNORED and nothing was aggregated.
	Ignored  bool
	Result   domain.UpsertResult
	Incident *domain.Incident
}

// DraftThresholds control when a system draft is opened for an incident.
type DraftThresholds struct {
	HostSpread int64
	HighRecur  int64
}

// RecordOccurrenceUseCase aggregates an event into the event-log store and
// mirrors it into the incident store.
type RecordOccurrenceUseCase struct {
	errorLogs  domain.ErrorLogRepository
	incidents  domain.IncidentRepository
	drafts     domain.DraftRepository
	thresholds DraftThresholds
	metrics    *metrics.PipelineMetrics
	clock      clock.Clock
	logger     *slog.Logger
}

func NewRecordOccurrenceUseCase(
	errorLogs domain.ErrorLogRepository,
	incidents domain.IncidentRepository,
	drafts domain.DraftRepository,
	thresholds DraftThresholds,
	m *metrics.PipelineMetrics,
	clk clock.Clock,
	logger *slog.Logger,
) *RecordOccurrenceUseCase {
	return &RecordOccurrenceUseCase{
		errorLogs:  errorLogs,
		incidents:  incidents,
		drafts:     drafts,
		thresholds: thresholds,
		metrics:    m,
		clock:      clk,
		logger:     logger.With("component", "recorder"),
	}
}

// Record runs the aggregation for one event. Only an event-log store failure
// is returned; incident and draft writes are best effort.
func (uc *RecordOccurrenceUseCase) Record(ctx context.Context, event domain.ErrorEvent) (RecordOutcome, error) {
	ctx, span := tracer.Start(ctx, "RecordOccurrence",
		trace.WithAttributes(attribute.String("service.name", event.ServiceName)))
	defer span.End()

	var out RecordOutcome

	level := fingerprint.EffectiveLevel(event.LogLevel, event.Message)
	if !fingerprint.IsTargetLevel(level) {
		uc.logger.Debug("Skipping non-collected level", "level", level, "event_id", event.EventID)
		uc.metrics.Record("skipped")
		out.Skipped = true
		return out, nil
	}

	out.Key = fingerprint.Fingerprint(event.ServiceName, event.Message, event.StackTrace)
	span.SetAttributes(attribute.String("log_hash", out.Key))

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = uc.clock.Now().UTC()
	}

	ignored, err := uc.incidents.TouchIfIgnored(ctx, out.Key, occurredAt)
	if err != nil {
		uc.logger.Warn("Failed to check incident ignore state", "log_hash", out.Key, "error", err)
	}
	if ignored {
		uc.metrics.Record("ignored")
		out.Ignored = true
		return out, nil
	}

	occ := domain.Occurrence{
		LogHash:     out.Key,
		ServiceName: event.ServiceName,
		HostName:    event.Host(),
		IP:          event.IP,
		LogLevel:    level,
		Message:     event.Message,
		StackTrace:  event.StackTrace,
		Summary:     fingerprint.Summary(event.Message),
		ErrorCode:   fingerprint.ErrorCode(event.Message, event.StackTrace),
		OccurredAt:  occurredAt,
	}

	out.Result, err = uc.errorLogs.UpsertOccurrence(ctx, occ)
	if err != nil {
		uc.metrics.Record("failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return out, fmt.Errorf("failed to aggregate event %s: %w", event.EventID, err)
	}
	uc.metrics.Record("success")

	inc, err := uc.incidents.RecordOccurrence(ctx, occ)
	if err != nil {
		uc.logger.Warn("Failed to mirror occurrence into incident store", "log_hash", out.Key, "error", err)
		return out, nil
	}
	out.Incident = inc

	uc.maybeDraft(ctx, *inc, out.Result)
	return out, nil
}

func (uc *RecordOccurrenceUseCase) maybeDraft(ctx context.Context, inc domain.Incident, r domain.UpsertResult) {
	var reason domain.DraftReason
	switch {
	case uc.thresholds.HostSpread > 0 && r.ImpactedHostCount >= uc.thresholds.HostSpread:
		reason = domain.DraftHostSpread
	case uc.thresholds.HighRecur > 0 && r.RepeatCount >= uc.thresholds.HighRecur:
		reason = domain.DraftHighRecur
	default:
		return
	}

	d := domain.NewSystemDraft(inc, reason, r.ImpactedHostCount, r.RepeatCount, uc.clock.Now().UTC())
	created, err := uc.drafts.CreateIfAbsent(ctx, d)
	if err != nil {
		uc.logger.Warn("Failed to create system draft", "log_hash", inc.LogHash, "reason", reason, "error", err)
		return
	}
	if created {
		uc.metrics.Drafts("created", 1)
		uc.logger.Info("System draft created", "log_hash", inc.LogHash, "reason", reason)
	}
}
