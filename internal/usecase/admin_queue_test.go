package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain/mocks"
)

func TestAdminQueueUseCase(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.MockQueueAdmin{
		StatsResult: domain.QueueStats{QueueKey: "errorlog:queue", QueueDepth: 7, DLQKey: "errorlog:dlq", DLQDepth: 2},
		Peeked:      []string{"a", "b", "c"},
		Replayed:    3,
	}
	uc := NewAdminQueueUseCase(repo, metrics.NewPipelineMetrics(prometheus.NewRegistry()))

	stats, err := uc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, stats.QueueDepth)

	peeked, err := uc.PeekDeadLetters(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, peeked)

	moved, err := uc.ReplayDeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, moved)

	require.NoError(t, uc.SampleDepth(ctx))

	repo.Err = errors.New("redis down")
	assert.Error(t, uc.SampleDepth(ctx))
}
