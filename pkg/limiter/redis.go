package limiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisKeyTTL bounds how long idle limiter keys survive in Redis.
const redisKeyTTL = 30 * time.Minute

// RedisStores provides Redis-backed cooldown and concurrency state so
// limits hold across processes sharing one Redis.
type RedisStores struct {
	client *redis.Client
	prefix string
}

// RedisConfig configures the Redis limiter backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStores connects to Redis and returns the shared store set.
func NewRedisStores(ctx context.Context, cfg *RedisConfig) (*RedisStores, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tanjun"
	}
	return &RedisStores{client: client, prefix: prefix}, nil
}

// Close releases the Redis connection.
func (r *RedisStores) Close() error {
	return r.client.Close()
}

// Cooldown returns the Redis-backed cooldown store.
func (r *RedisStores) Cooldown() CooldownStore { return &redisCooldownStore{r} }

// Concurrency returns the Redis-backed concurrency store.
func (r *RedisStores) Concurrency() ConcurrencyStore { return &redisConcurrencyStore{r} }

type redisCooldownStore struct{ *RedisStores }

func (s *redisCooldownStore) keys(bucket, key string) (resets, locked string) {
	base := fmt.Sprintf("%s:cd:%s:%s", s.prefix, bucket, key)
	return base + ":resets", base + ":locked"
}

func (s *redisCooldownStore) TryAcquire(ctx context.Context, bucket, key string, limit int, _ time.Duration) (time.Time, bool, error) {
	resetsKey, lockedKey := s.keys(bucket, key)
	now := time.Now()

	if err := s.client.ZRemRangeByScore(ctx, resetsKey, "-inf", strconv.FormatInt(now.UnixMilli(), 10)).Err(); err != nil {
		return time.Time{}, false, fmt.Errorf("pruning cooldown window: %w", err)
	}

	card, err := s.client.ZCard(ctx, resetsKey).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading cooldown window: %w", err)
	}
	locked, err := s.client.Get(ctx, lockedKey).Int64()
	if err != nil && err != redis.Nil {
		return time.Time{}, false, fmt.Errorf("reading cooldown holds: %w", err)
	}

	if card+locked >= int64(limit) {
		var waitUntil time.Time
		first, err := s.client.ZRangeWithScores(ctx, resetsKey, 0, 0).Result()
		if err == nil && len(first) > 0 {
			waitUntil = time.UnixMilli(int64(first[0].Score))
		}
		return waitUntil, false, nil
	}

	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, lockedKey)
	pipe.Expire(ctx, lockedKey, redisKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return time.Time{}, false, fmt.Errorf("acquiring cooldown hold: %w", err)
	}
	return time.Time{}, true, nil
}

func (s *redisCooldownStore) Release(ctx context.Context, bucket, key string, window time.Duration) error {
	resetsKey, lockedKey := s.keys(bucket, key)
	reset := time.Now().Add(window)

	pipe := s.client.TxPipeline()
	pipe.Decr(ctx, lockedKey)
	pipe.ZAdd(ctx, resetsKey, redis.Z{
		Score:  float64(reset.UnixMilli()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, resetsKey, redisKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("releasing cooldown hold: %w", err)
	}
	return nil
}

type redisConcurrencyStore struct{ *RedisStores }

func (s *redisConcurrencyStore) key(bucket, key string) string {
	return fmt.Sprintf("%s:cc:%s:%s", s.prefix, bucket, key)
}

func (s *redisConcurrencyStore) TryAcquire(ctx context.Context, bucket, key string, limit int) (bool, error) {
	k := s.key(bucket, key)

	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring concurrency slot: %w", err)
	}
	if n > int64(limit) {
		if err := s.client.Decr(ctx, k).Err(); err != nil {
			return false, fmt.Errorf("rolling back concurrency slot: %w", err)
		}
		return false, nil
	}
	s.client.Expire(ctx, k, redisKeyTTL)
	return true, nil
}

func (s *redisConcurrencyStore) Release(ctx context.Context, bucket, key string) error {
	if err := s.client.Decr(ctx, s.key(bucket, key)).Err(); err != nil {
		return fmt.Errorf("releasing concurrency slot: %w", err)
	}
	return nil
}
