package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// AdminRepository implements domain.QueueAdminRepository for Redis lists.
type AdminRepository struct {
	client   *redis.Client
	logger   *slog.Logger
	queueKey string
	dlqKey   string
}

// NewAdminRepository creates a new Redis admin repository.
func NewAdminRepository(client *redis.Client, queueKey, dlqKey string, logger *slog.Logger) *AdminRepository {
	return &AdminRepository{
		client:   client,
		logger:   logger.With("component", "redis_admin"),
		queueKey: queueKey,
		dlqKey:   dlqKey,
	}
}

// Stats returns the depth of the queue and the DLQ.
func (r *AdminRepository) Stats(ctx context.Context) (domain.QueueStats, error) {
	pipe := r.client.Pipeline()
	q := pipe.LLen(ctx, r.queueKey)
	d := pipe.LLen(ctx, r.dlqKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.QueueStats{}, fmt.Errorf("failed to read queue depths: %w", err)
	}
	return domain.QueueStats{
		QueueKey:   r.queueKey,
		QueueDepth: q.Val(),
		DLQKey:     r.dlqKey,
		DLQDepth:   d.Val(),
	}, nil
}

// PeekDeadLetters returns up to count payloads from the head of the DLQ
// without removing them.
func (r *AdminRepository) PeekDeadLetters(ctx context.Context, count int64) ([]string, error) {
	if count <= 0 {
		return nil, errors.New("count must be positive")
	}
	items, err := r.client.LRange(ctx, r.dlqKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to LRANGE DLQ %s: %w", r.dlqKey, err)
	}
	return items, nil
}

// ReplayDeadLetters moves up to count payloads from the DLQ head back to the
// queue tail and returns how many moved.
func (r *AdminRepository) ReplayDeadLetters(ctx context.Context, count int64) (int64, error) {
	if count <= 0 {
		return 0, errors.New("count must be positive")
	}
	var moved int64
	for moved < count {
		err := r.client.LMove(ctx, r.dlqKey, r.queueKey, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("failed to LMOVE from DLQ: %w", err)
		}
		moved++
	}
	if moved > 0 {
		r.logger.Warn("Replayed dead letters onto queue", "count", moved)
	}
	return moved, nil
}
