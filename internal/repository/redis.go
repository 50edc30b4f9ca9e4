package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"villasole/internal/config"
	"villasole/internal/models"

	"github.com/redis/go-redis/v9"
)

const snapshotHashKey = "occupancy:snapshots"

// RedisSnapshotRepository keeps per-source occupancy snapshots in a single
// redis hash keyed by source id, with a TTL so abandoned sources age out.
type RedisSnapshotRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return client.Ping(ctx).Err()
}

func NewRedisSnapshotRepository(client *redis.Client, ttl time.Duration) *RedisSnapshotRepository {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultSnapshotTTL) * time.Second
	}
	return &RedisSnapshotRepository{client: client, ttl: ttl}
}

func (r *RedisSnapshotRepository) SetSnapshot(ctx context.Context, sourceID int64, entries []models.ExternalOccupancy) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, snapshotHashKey, strconv.FormatInt(sourceID, 10), data)
	pipe.Expire(ctx, snapshotHashKey, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (r *RedisSnapshotRepository) GetSnapshot(ctx context.Context, sourceID int64) ([]models.ExternalOccupancy, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.HGet(ctx, snapshotHashKey, strconv.FormatInt(sourceID, 10)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var entries []models.ExternalOccupancy
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return entries, nil
}

func (r *RedisSnapshotRepository) GetAllSnapshots(ctx context.Context) ([]models.ExternalOccupancy, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.HGetAll(ctx, snapshotHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	var all []models.ExternalOccupancy
	for _, value := range raw {
		var entries []models.ExternalOccupancy
		if err := json.Unmarshal([]byte(value), &entries); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		all = append(all, entries...)
	}
	return all, nil
}

func (r *RedisSnapshotRepository) ClearSnapshot(ctx context.Context, sourceID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return r.client.HDel(ctx, snapshotHashKey, strconv.FormatInt(sourceID, 10)).Err()
}
