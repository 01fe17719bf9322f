package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL keeps day buckets around long enough to cover clock skew and
// late releases, then lets Redis reap them.
const counterTTL = 48 * time.Hour

// RedisStore implements Store and Acquirer on a Redis counter per
// (identity, day). Acquire is a single INCR compared against the limit,
// so two racing sessions from one identity cannot both slip under the
// quota; the losing increment is rolled back.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func counterKey(identity, date string) string {
	return fmt.Sprintf("quota:%s:%s", date, identity)
}

// CountToday returns the identity's counter for the day.
func (s *RedisStore) CountToday(ctx context.Context, identity, date string) (int, error) {
	n, err := s.client.Get(ctx, counterKey(identity, date)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota counter: %w", err)
	}
	return n, nil
}

// Record increments the identity's counter for the day.
func (s *RedisStore) Record(ctx context.Context, rec UploadRecord) error {
	key := counterKey(rec.Identity, rec.Date)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment quota counter: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, counterTTL).Err(); err != nil {
			return fmt.Errorf("failed to set quota counter TTL: %w", err)
		}
	}
	return nil
}

// Acquire atomically consumes a slot if one is available.
func (s *RedisStore) Acquire(ctx context.Context, identity, date string, limit int) (int, bool, error) {
	key := counterKey(identity, date)

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment quota counter: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, counterTTL).Err(); err != nil {
			return 0, false, fmt.Errorf("failed to set quota counter TTL: %w", err)
		}
	}

	if int(n) > limit {
		// Over the limit: give the slot straight back.
		if err := s.client.Decr(ctx, key).Err(); err != nil {
			return 0, false, fmt.Errorf("failed to roll back quota increment: %w", err)
		}
		return int(n) - 1, false, nil
	}
	return int(n), true, nil
}

// Release returns one previously acquired slot.
func (s *RedisStore) Release(ctx context.Context, identity, date string) error {
	if err := s.client.Decr(ctx, counterKey(identity, date)).Err(); err != nil {
		return fmt.Errorf("failed to release quota slot: %w", err)
	}
	return nil
}
