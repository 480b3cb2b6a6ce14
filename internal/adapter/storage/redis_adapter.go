package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	availableKeyPrefix = "available:"
	idempotencyKeyTTL  = 24 * time.Hour
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) SetAvailable(ctx context.Context, listingID string, quantity int) error {
	return r.client.Set(ctx, availableKeyPrefix+listingID, quantity, 0).Err()
}

func (r *RedisAdapter) DeleteAvailable(ctx context.Context, listingID string) error {
	return r.client.Del(ctx, availableKeyPrefix+listingID).Err()
}

// GetAvailable reads the published quantity back; -1 means nothing published.
func (r *RedisAdapter) GetAvailable(ctx context.Context, listingID string) (int, error) {
	n, err := r.client.Get(ctx, availableKeyPrefix+listingID).Int()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}
