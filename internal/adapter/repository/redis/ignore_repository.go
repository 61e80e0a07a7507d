package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// IgnoreRepository implements domain.IgnoreMarker as a Redis set of keys.
type IgnoreRepository struct {
	client *redis.Client
	setKey string
}

// NewIgnoreRepository creates a marker backed by the set at setKey.
func NewIgnoreRepository(client *redis.Client, setKey string) *IgnoreRepository {
	return &IgnoreRepository{client: client, setKey: setKey}
}

func (r *IgnoreRepository) IsIgnored(ctx context.Context, logHash string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.setKey, logHash).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check ignored set: %w", err)
	}
	return ok, nil
}

func (r *IgnoreRepository) MarkIgnored(ctx context.Context, logHash string) error {
	if err := r.client.SAdd(ctx, r.setKey, logHash).Err(); err != nil {
		return fmt.Errorf("failed to add %s to ignored set: %w", logHash, err)
	}
	return nil
}

func (r *IgnoreRepository) UnmarkIgnored(ctx context.Context, logHash string) error {
	if err := r.client.SRem(ctx, r.setKey, logHash).Err(); err != nil {
		return fmt.Errorf("failed to remove %s from ignored set: %w", logHash, err)
	}
	return nil
}
