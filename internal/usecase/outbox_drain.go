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

// OutboxConfig bounds one drain pass and its retry schedule.
type OutboxConfig struct {
	BatchSize   int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// OutboxDrainUseCase delivers pending outbox entries to the event-log store
// and the ignored set.
type OutboxDrainUseCase struct {
	outbox    domain.OutboxRepository
	errorLogs domain.ErrorLogRepository
	ignored   domain.IgnoreMarker
	cfg       OutboxConfig
	metrics   *metrics.PipelineMetrics
	clock     clock.Clock
	logger    *slog.Logger
}

func NewOutboxDrainUseCase(
	outbox domain.OutboxRepository,
	errorLogs domain.ErrorLogRepository,
	ignored domain.IgnoreMarker,
	cfg OutboxConfig,
	m *metrics.PipelineMetrics,
	clk clock.Clock,
	logger *slog.Logger,
) *OutboxDrainUseCase {
	return &OutboxDrainUseCase{
		outbox:    outbox,
		errorLogs: errorLogs,
		ignored:   ignored,
		cfg:       cfg,
		metrics:   m,
		clock:     clk,
		logger:    logger.With("component", "outbox"),
	}
}

// Drain applies every due entry once and returns how many succeeded.
func (uc *OutboxDrainUseCase) Drain(ctx context.Context) (int, error) {
	now := uc.clock.Now().UTC()
	due, err := uc.outbox.FindDue(ctx, now, uc.cfg.BatchSize, uc.cfg.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to load outbox: %w", err)
	}

	delivered := 0
	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		if err := uc.apply(ctx, e); err != nil {
			uc.fail(ctx, e, err)
			continue
		}
		if err := uc.outbox.MarkSucceeded(ctx, e.ID, uc.clock.Now().UTC()); err != nil {
			uc.logger.Error("Failed to mark outbox entry delivered", "id", e.ID, "error", err)
			continue
		}
		uc.metrics.Outbox(string(e.Action), "success")
		delivered++
	}
	if delivered > 0 {
		uc.logger.Info("Outbox entries delivered", "count", delivered, "due", len(due))
	}
	return delivered, nil
}

// apply is idempotent so a redelivered entry is harmless.
func (uc *OutboxDrainUseCase) apply(ctx context.Context, e domain.OutboxEntry) error {
	switch e.Action {
	case domain.OutboxIgnore:
		if err := uc.errorLogs.MarkIgnored(ctx, e.LogHash); err != nil {
			return err
		}
		return uc.ignored.MarkIgnored(ctx, e.LogHash)
	case domain.OutboxUnignore:
		if err := uc.errorLogs.UnmarkIgnored(ctx, e.LogHash); err != nil {
			return err
		}
		return uc.ignored.UnmarkIgnored(ctx, e.LogHash)
	}
	return fmt.Errorf("unknown outbox action %q", e.Action)
}

func (uc *OutboxDrainUseCase) fail(ctx context.Context, e domain.OutboxEntry, cause error) {
	now := uc.clock.Now().UTC()
	attempts := e.AttemptCount + 1
	next := now.Add(domain.OutboxBackoff(attempts, uc.cfg.BackoffBase, uc.cfg.BackoffMax))
	uc.metrics.Outbox(string(e.Action), "failure")

	if err := uc.outbox.MarkFailed(ctx, e.ID, attempts, next, cause.Error(), now); err != nil {
		uc.logger.Error("Failed to record outbox failure", "id", e.ID, "error", err)
		return
	}
	if attempts >= uc.cfg.MaxAttempts {
		uc.logger.Error("Outbox entry exhausted retries",
			"id", e.ID, "log_hash", e.LogHash, "action", e.Action, "attempts", attempts, "error", cause)
		return
	}
	uc.logger.Warn("Outbox delivery failed, will retry",
		"id", e.ID, "log_hash", e.LogHash, "attempt", attempts, "next_retry_at", next, "error", cause)
}
