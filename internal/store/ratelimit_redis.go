package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/admission-gate/internal/ratelimit"
)

// RateLimitRedisStore is a Redis implementation of the rate limit
// capability sets. Each method is a single Redis command; timeouts come
// from the client options.
type RateLimitRedisStore struct {
	client redis.UniversalClient
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client redis.UniversalClient) *RateLimitRedisStore {
	return &RateLimitRedisStore{client: client}
}

// Backends exposes the store as every capability set.
func (r *RateLimitRedisStore) Backends() ratelimit.Backends {
	return ratelimit.Backends{Counter: r, Timestamps: r, State: r}
}

func (r *RateLimitRedisStore) Increment(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *RateLimitRedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.PExpire(ctx, key, ttl).Err()
}

func (r *RateLimitRedisStore) AddTimestamp(ctx context.Context, key string, score int64, member string) error {
	return r.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(score),
		Member: member,
	}).Err()
}

func (r *RateLimitRedisStore) RemoveRange(ctx context.Context, key string, minScore, maxScore int64) error {
	return r.client.ZRemRangeByScore(ctx, key,
		strconv.FormatInt(minScore, 10),
		strconv.FormatInt(maxScore, 10),
	).Err()
}

func (r *RateLimitRedisStore) Count(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

func (r *RateLimitRedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, err
	}

	return value, true, nil
}

func (r *RateLimitRedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

// Compile-time check.
var (
	_ ratelimit.Counter      = (*RateLimitRedisStore)(nil)
	_ ratelimit.Expirer      = (*RateLimitRedisStore)(nil)
	_ ratelimit.TimestampSet = (*RateLimitRedisStore)(nil)
	_ ratelimit.StateStore   = (*RateLimitRedisStore)(nil)
)
