package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// IncidentBridgeUseCase changes incident status and leaves the event-log side
// effects to the outbox.
type IncidentBridgeUseCase struct {
	incidents domain.IncidentRepository
	drafts    domain.DraftRepository
	errorLogs domain.ErrorLogRepository
	grace     time.Duration
	metrics   *metrics.PipelineMetrics
	clock     clock.Clock
	logger    *slog.Logger
}

func NewIncidentBridgeUseCase(
	incidents domain.IncidentRepository,
	drafts domain.DraftRepository,
	errorLogs domain.ErrorLogRepository,
	grace time.Duration,
	m *metrics.PipelineMetrics,
	clk clock.Clock,
	logger *slog.Logger,
) *IncidentBridgeUseCase {
	return &IncidentBridgeUseCase{
		incidents: incidents,
		drafts:    drafts,
		errorLogs: errorLogs,
		grace:     grace,
		metrics:   m,
		clock:     clk,
		logger:    logger.With("component", "incident_bridge"),
	}
}

// UpdateStatus moves the incident to status. Crossing the IGNORED boundary
// enqueues an outbox entry in the same incident-store transaction; resolving
// opens a RESOLVED draft.
func (uc *IncidentBridgeUseCase) UpdateStatus(ctx context.Context, logHash string, status domain.IncidentStatus) (*domain.StatusChange, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTransition, status)
	}
	change, err := uc.incidents.TransitionStatus(ctx, logHash, status, uc.clock.Now().UTC(), uc.grace)
	if err != nil {
		return nil, fmt.Errorf("failed to update incident %s: %w", logHash, err)
	}

	attrs := []any{"log_hash", logHash, "from", change.Previous, "to", status}
	if change.Outbox != nil {
		attrs = append(attrs, "outbox_id", change.Outbox.ID, "outbox_action", change.Outbox.Action)
	}
	uc.logger.Info("Incident status updated", attrs...)

	if status == domain.IncidentResolved && change.Previous != domain.IncidentResolved {
		uc.resolvedDraft(ctx, change.Incident)
	}
	return change, nil
}

// Incident returns the incident for logHash.
func (uc *IncidentBridgeUseCase) Incident(ctx context.Context, logHash string) (*domain.Incident, error) {
	return uc.incidents.FindByKey(ctx, logHash)
}

// Draft returns the system draft opened for logHash.
func (uc *IncidentBridgeUseCase) Draft(ctx context.Context, logHash string) (*domain.Draft, error) {
	return uc.drafts.FindDraft(ctx, logHash)
}

func (uc *IncidentBridgeUseCase) resolvedDraft(ctx context.Context, inc domain.Incident) {
	var hosts int64
	counts, err := uc.errorLogs.CountHostsByKeys(ctx, []string{inc.LogHash})
	if err != nil {
		uc.logger.Warn("Failed to count hosts for draft", "log_hash", inc.LogHash, "error", err)
	} else {
		hosts = counts[inc.LogHash]
	}

	d := domain.NewSystemDraft(inc, domain.DraftResolved, hosts, inc.RepeatCount, uc.clock.Now().UTC())
	created, err := uc.drafts.CreateIfAbsent(ctx, d)
	if err != nil {
		uc.logger.Warn("Failed to create resolved draft", "log_hash", inc.LogHash, "error", err)
		return
	}
	if created {
		uc.metrics.Drafts("created", 1)
	}
}

// ErrorLogAdminUseCase exposes operator actions on event-log records.
type ErrorLogAdminUseCase struct {
	errorLogs domain.ErrorLogRepository
	clock     clock.Clock
	logger    *slog.Logger
}

func NewErrorLogAdminUseCase(errorLogs domain.ErrorLogRepository, clk clock.Clock, logger *slog.Logger) *ErrorLogAdminUseCase {
	return &ErrorLogAdminUseCase{errorLogs: errorLogs, clock: clk, logger: logger.With("component", "errorlog_admin")}
}

func (uc *ErrorLogAdminUseCase) Record(ctx context.Context, logHash string) (*domain.ErrorLogRecord, error) {
	return uc.errorLogs.FindByKey(ctx, logHash)
}

// Acknowledge silences further notifications for the record.
func (uc *ErrorLogAdminUseCase) Acknowledge(ctx context.Context, logHash, by string) error {
	if err := uc.errorLogs.Acknowledge(ctx, logHash, by, uc.clock.Now().UTC()); err != nil {
		return fmt.Errorf("failed to acknowledge %s: %w", logHash, err)
	}
	uc.logger.Info("Error log acknowledged", "log_hash", logHash, "by", by)
	return nil
}

// Resolve marks the record RESOLVED; a later occurrence reopens it.
func (uc *ErrorLogAdminUseCase) Resolve(ctx context.Context, logHash string) error {
	if err := uc.errorLogs.Resolve(ctx, logHash, uc.clock.Now().UTC()); err != nil {
		return fmt.Errorf("failed to resolve %s: %w", logHash, err)
	}
	uc.logger.Info("Error log resolved", "log_hash", logHash)
	return nil
}
