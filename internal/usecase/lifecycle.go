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

// LifecycleUseCase runs the time-based incident housekeeping.
type LifecycleUseCase struct {
	incidents      domain.IncidentRepository
	drafts         domain.DraftRepository
	draftRetention time.Duration
	metrics        *metrics.PipelineMetrics
	clock          clock.Clock
	logger         *slog.Logger
}

func NewLifecycleUseCase(
	incidents domain.IncidentRepository,
	drafts domain.DraftRepository,
	draftRetention time.Duration,
	m *metrics.PipelineMetrics,
	clk clock.Clock,
	logger *slog.Logger,
) *LifecycleUseCase {
	return &LifecycleUseCase{
		incidents:      incidents,
		drafts:         drafts,
		draftRetention: draftRetention,
		metrics:        m,
		clock:          clk,
		logger:         logger.With("component", "lifecycle"),
	}
}

// AutoClose closes RESOLVED incidents whose grace period has ended.
func (uc *LifecycleUseCase) AutoClose(ctx context.Context) (int, error) {
	keys, err := uc.incidents.CloseResolved(ctx, uc.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to auto-close incidents: %w", err)
	}
	if len(keys) > 0 {
		uc.metrics.AutoClosed(len(keys))
		uc.logger.Info("Incidents auto-closed", "count", len(keys), "log_hashes", keys)
	}
	return len(keys), nil
}

// CleanupDrafts deletes untouched system drafts past the retention window.
func (uc *LifecycleUseCase) CleanupDrafts(ctx context.Context) (int64, error) {
	cutoff := uc.clock.Now().UTC().Add(-uc.draftRetention)
	n, err := uc.drafts.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up drafts: %w", err)
	}
	if n > 0 {
		uc.metrics.Drafts("deleted", n)
		uc.logger.Info("Stale drafts deleted", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
