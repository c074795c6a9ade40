package command

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL bounds how long undelivered commands stay in Redis.
const DefaultRedisTTL = time.Hour

// RedisTransport stores each key as a Redis list. Publish is RPUSH plus
// EXPIRE; Poll reads and deletes the list in one MULTI/EXEC transaction.
type RedisTransport struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// RedisOption configures a RedisTransport.
type RedisOption func(*RedisTransport)

// WithTTL sets the expiry refreshed on every publish.
func WithTTL(ttl time.Duration) RedisOption {
	return func(t *RedisTransport) {
		t.ttl = ttl
	}
}

// NewRedisTransport wraps an existing client. The caller owns the client.
func NewRedisTransport(client redis.UniversalClient, opts ...RedisOption) *RedisTransport {
	t := &RedisTransport{client: client, ttl: DefaultRedisTTL}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Publish implements Transport.
func (t *RedisTransport) Publish(ctx context.Context, key string, msg []byte) error {
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, msg)
		if t.ttl > 0 {
			p.Expire(ctx, key, t.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// Poll implements Transport.
func (t *RedisTransport) Poll(ctx context.Context, key string) ([][]byte, error) {
	var items *redis.StringSliceCmd
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		items = p.LRange(ctx, key, 0, -1)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis poll %s: %w", key, err)
	}
	vals := items.Val()
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}
