package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"doka-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const snapshotKey = "doka:catalog:snapshot"

var ErrNoSnapshot = errors.New("no catalog snapshot")

// RedisSnapshotCache keeps the last known catalog as one JSON value.
type RedisSnapshotCache struct {
	client *redis.Client
	key    string
}

func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, key: snapshotKey}
}

func (r *RedisSnapshotCache) Save(ctx context.Context, products []models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return r.client.Set(ctx, r.key, data, 0).Err()
}

func (r *RedisSnapshotCache) Load(ctx context.Context) ([]models.Product, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return products, nil
}
