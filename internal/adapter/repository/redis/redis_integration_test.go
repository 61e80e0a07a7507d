package redis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveClient connects to INTEGRATION_REDIS_ADDR (a redis:// URL) or skips.
func liveClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("INTEGRATION_REDIS_ADDR")
	if addr == "" {
		t.Skip("INTEGRATION_REDIS_ADDR not set")
	}
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestQueueRepository_Live(t *testing.T) {
	client := liveClient(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	prefix := "it:" + uuid.NewString()
	cfg := QueueConfig{QueueKey: prefix + ":queue", DLQKey: prefix + ":dlq", QueueTTL: time.Minute, DLQTTL: time.Hour}
	t.Cleanup(func() { client.Del(ctx, cfg.QueueKey, cfg.DLQKey) })

	queue := NewQueueRepository(client, cfg, logger)
	admin := NewAdminRepository(client, cfg.QueueKey, cfg.DLQKey, logger)

	require.NoError(t, queue.Push(ctx, []byte("first")))
	require.NoError(t, queue.Push(ctx, []byte("second")))

	ttl, err := client.TTL(ctx, cfg.QueueKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	got, err := queue.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got), "queue is FIFO")

	require.NoError(t, queue.DeadLetter(ctx, []byte("broken")))
	stats, err := admin.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.QueueDepth)
	assert.EqualValues(t, 1, stats.DLQDepth)

	peeked, err := admin.PeekDeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken"}, peeked)

	moved, err := admin.ReplayDeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, moved)

	got, err = queue.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
	got, err = queue.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "broken", string(got))

	got, err = queue.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got, "empty queue pops nil")
}

func TestIgnoreRepository_Live(t *testing.T) {
	client := liveClient(t)
	ctx := context.Background()
	key := "it:" + uuid.NewString() + ":ignored"
	t.Cleanup(func() { client.Del(ctx, key) })

	repo := NewIgnoreRepository(client, key)
	ok, err := repo.IsIgnored(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.MarkIgnored(ctx, "abc"))
	require.NoError(t, repo.MarkIgnored(ctx, "abc"))
	ok, err = repo.IsIgnored(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.UnmarkIgnored(ctx, "abc"))
	require.NoError(t, repo.UnmarkIgnored(ctx, "abc"))
	ok, err = repo.IsIgnored(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}
