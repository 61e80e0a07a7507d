package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("push: %w", context.DeadlineExceeded), true},
		{"closed client", redis.ErrClosed, true},
		{"redis nil", redis.Nil, false},
		{"plain", errors.New("WRONGTYPE"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNetworkError(tt.err); got != tt.want {
				t.Errorf("isNetworkError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestQueueRepository_PushWhenUnavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	repo := NewQueueRepository(client, QueueConfig{QueueKey: "q", DLQKey: "dlq", QueueTTL: time.Minute}, logger)
	if !repo.IsAvailable() {
		t.Fatal("expected queue to start available")
	}
	repo.isAvailable.Store(false)

	err := repo.Push(context.Background(), []byte(`{}`))
	if !errors.Is(err, domain.ErrQueueUnavailable) {
		t.Fatalf("expected ErrQueueUnavailable, got %v", err)
	}
}

func TestQueueRepository_ProbeUnreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	defer client.Close()

	repo := NewQueueRepository(client, QueueConfig{QueueKey: "q", DLQKey: "dlq"}, logger)
	var reported []bool
	repo.OnHealthChange(func(ok bool) { reported = append(reported, ok) })

	if repo.Probe(context.Background()) {
		t.Fatal("expected probe to fail against an unreachable address")
	}
	if repo.IsAvailable() {
		t.Error("expected queue to be marked unavailable")
	}
	if len(reported) != 1 || reported[0] {
		t.Errorf("expected one unhealthy report, got %v", reported)
	}
}

func TestQueueRepository_CallerDeadlineKeepsAvailability(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	defer client.Close()

	repo := NewQueueRepository(client, QueueConfig{QueueKey: "q", DLQKey: "dlq", QueueTTL: time.Minute}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	if err := repo.Push(ctx, []byte(`{}`)); err == nil {
		t.Fatal("expected push with an expired context to fail")
	}
	if _, err := repo.Pop(ctx, time.Millisecond); err == nil {
		t.Fatal("expected pop with an expired context to fail")
	}
	if err := repo.DeadLetter(ctx, []byte(`{}`)); err == nil {
		t.Fatal("expected dead letter with an expired context to fail")
	}
	if !repo.IsAvailable() {
		t.Error("caller deadline must not mark the queue unavailable")
	}

	if err := repo.Push(context.Background(), []byte(`{}`)); err == nil {
		t.Fatal("expected push to an unreachable address to fail")
	}
	if repo.IsAvailable() {
		t.Error("expected a dial failure to mark the queue unavailable")
	}
}
