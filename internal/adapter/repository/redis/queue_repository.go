package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// QueueConfig names the Redis keys and TTLs used by the queue.
type QueueConfig struct {
	QueueKey string
	DLQKey   string
	QueueTTL time.Duration
	DLQTTL   time.Duration
}

// QueueRepository implements domain.EventQueue on Redis lists. Producers RPUSH,
// consumers BLPOP, so the list is FIFO.
type QueueRepository struct {
	client      *redis.Client
	logger      *slog.Logger
	cfg         QueueConfig
	isAvailable atomic.Bool
	onHealth    func(bool)
}

// NewQueueRepository creates a new Redis-backed queue.
func NewQueueRepository(client *redis.Client, cfg QueueConfig, logger *slog.Logger) *QueueRepository {
	repo := &QueueRepository{
		client: client,
		logger: logger.With("component", "redis_queue"),
		cfg:    cfg,
	}
	repo.isAvailable.Store(true) // Assume available initially
	return repo
}

// OnHealthChange registers a callback invoked with the new availability after
// every health probe.
func (r *QueueRepository) OnHealthChange(fn func(bool)) {
	r.onHealth = fn
}

// IsAvailable reports the last known health of Redis.
func (r *QueueRepository) IsAvailable() bool {
	return r.isAvailable.Load()
}

// StartHealthCheck pings Redis every interval and flips the availability flag.
// It blocks until ctx is cancelled.
func (r *QueueRepository) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Starting Redis health check", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping Redis health check")
			return
		case <-ticker.C:
			r.Probe(ctx)
		}
	}
}

// Probe pings Redis once, updates the availability flag and returns it.
func (r *QueueRepository) Probe(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		if r.isAvailable.CompareAndSwap(true, false) {
			r.logger.Error("Redis connection lost", "error", err)
		}
	} else if r.isAvailable.CompareAndSwap(false, true) {
		r.logger.Info("Redis connection recovered")
	}
	ok := r.isAvailable.Load()
	if r.onHealth != nil {
		r.onHealth(ok)
	}
	return ok
}

// Push appends a payload to the queue and refreshes its TTL in one MULTI.
func (r *QueueRepository) Push(ctx context.Context, payload []byte) error {
	if !r.isAvailable.Load() {
		return domain.ErrQueueUnavailable
	}

	err := r.pushWithTTL(ctx, r.cfg.QueueKey, r.cfg.QueueTTL, payload)
	if err != nil {
		r.markIfNetwork(ctx, err, "push")
		return fmt.Errorf("failed to push to queue %s: %w", r.cfg.QueueKey, err)
	}
	return nil
}

// Pop waits up to timeout for the next payload. An empty queue yields nil, nil.
func (r *QueueRepository) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := r.client.BLPop(ctx, timeout, r.cfg.QueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.markIfNetwork(ctx, err, "pop")
		return nil, fmt.Errorf("failed to BLPOP from queue %s: %w", r.cfg.QueueKey, err)
	}
	// BLPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply length %d", len(res))
	}
	return []byte(res[1]), nil
}

// DeadLetter appends a payload to the DLQ and refreshes its TTL.
func (r *QueueRepository) DeadLetter(ctx context.Context, payload []byte) error {
	if err := r.pushWithTTL(ctx, r.cfg.DLQKey, r.cfg.DLQTTL, payload); err != nil {
		r.markIfNetwork(ctx, err, "dead_letter")
		return fmt.Errorf("failed to push to DLQ %s: %w", r.cfg.DLQKey, err)
	}
	return nil
}

func (r *QueueRepository) pushWithTTL(ctx context.Context, key string, ttl time.Duration, payload []byte) error {
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// markIfNetwork flags Redis down on transport failures. An error caused by the
// caller's own context ending says nothing about Redis health.
func (r *QueueRepository) markIfNetwork(ctx context.Context, err error, op string) {
	if ctx.Err() != nil {
		return
	}
	if isNetworkError(err) && r.isAvailable.CompareAndSwap(true, false) {
		r.logger.Error("Redis connection lost", "op", op, "error", err)
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}
