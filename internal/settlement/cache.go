package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"buildmarket/internal/payment"

	"github.com/redis/go-redis/v9"
)

const sessionTTL = 24 * time.Hour

// RedisCache stores gateway sessions keyed by idempotency key. A miss is
// (nil, nil); cache failures are surfaced so the coordinator can log and
// fall through to the gateway, which dedupes server-side anyway.
type RedisCache struct {
	client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) GetSession(ctx context.Context, key string) (*payment.Session, error) {
	val, err := c.client.Get(ctx, "session:"+key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var s payment.Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached session: %w", err)
	}
	return &s, nil
}

func (c *RedisCache) SetSession(ctx context.Context, key string, s *payment.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := c.client.Set(ctx, "session:"+key, data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}
	return nil
}
