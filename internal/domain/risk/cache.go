package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache keeps the latest assessment per patient. Get returns nil, nil on
// a miss.
type Cache interface {
	Get(ctx context.Context, patientID uuid.UUID) (*Assessment, error)
	Set(ctx context.Context, a *Assessment) error
	Invalidate(ctx context.Context, patientID uuid.UUID) error
}

// RedisCache stores assessments as JSON under a per-patient key.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func redisKeyLatest(patientID uuid.UUID) string {
	return "healthrisk:risk:latest:" + patientID.String()
}

func (c *RedisCache) Get(ctx context.Context, patientID uuid.UUID) (*Assessment, error) {
	raw, err := c.rdb.Get(ctx, redisKeyLatest(patientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached assessment: %w", err)
	}
	var a Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode cached assessment: %w", err)
	}
	return &a, nil
}

func (c *RedisCache) Set(ctx context.Context, a *Assessment) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, redisKeyLatest(a.PatientID), raw, c.ttl).Err()
}

// Invalidate drops the cached assessment so the next read goes to the
// store. Measurement and record writes call it.
func (c *RedisCache) Invalidate(ctx context.Context, patientID uuid.UUID) error {
	return c.rdb.Del(ctx, redisKeyLatest(patientID)).Err()
}
