package usecase

import (
	"context"
	"fmt"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// AdminQueueUseCase provides operator views over the queue and DLQ.
type AdminQueueUseCase struct {
	repo    domain.QueueAdminRepository
	metrics *metrics.PipelineMetrics
}

func NewAdminQueueUseCase(repo domain.QueueAdminRepository, m *metrics.PipelineMetrics) *AdminQueueUseCase {
	return &AdminQueueUseCase{repo: repo, metrics: m}
}

func (uc *AdminQueueUseCase) Stats(ctx context.Context) (domain.QueueStats, error) {
	return uc.repo.Stats(ctx)
}

func (uc *AdminQueueUseCase) PeekDeadLetters(ctx context.Context, count int64) ([]string, error) {
	return uc.repo.PeekDeadLetters(ctx, count)
}

func (uc *AdminQueueUseCase) ReplayDeadLetters(ctx context.Context, count int64) (int64, error) {
	return uc.repo.ReplayDeadLetters(ctx, count)
}

// SampleDepth publishes the current queue and DLQ depth as gauges.
func (uc *AdminQueueUseCase) SampleDepth(ctx context.Context) error {
	s, err := uc.repo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to sample queue depth: %w", err)
	}
	uc.metrics.SetQueueDepth(s.QueueKey, s.QueueDepth)
	uc.metrics.SetQueueDepth(s.DLQKey, s.DLQDepth)
	return nil
}
