package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each domain as a hash of label to ciphertext.
type RedisBackend struct {
	client redis.Cmdable
	prefix string
}

func NewRedisBackend(client redis.Cmdable, prefix string) *RedisBackend {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "sitesherpa:vault"
	}
	return &RedisBackend{
		client: client,
		prefix: normalized,
	}
}

func (b *RedisBackend) Name() string {
	return "redis"
}

func (b *RedisBackend) Put(ctx context.Context, domain string, sealed map[string]string) error {
	key := b.domainKey(domain)
	values := make(map[string]any, len(sealed))
	for label, ciphertext := range sealed {
		values[label] = ciphertext
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("vault redis put: %w", err)
	}
	return nil
}

func (b *RedisBackend) Fetch(ctx context.Context, domain string) (map[string]string, bool, error) {
	found, err := b.client.HGetAll(ctx, b.domainKey(domain)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("vault redis fetch: %w", err)
	}
	if len(found) == 0 {
		return nil, false, nil
	}
	return found, true, nil
}

func (b *RedisBackend) domainKey(domain string) string {
	return b.prefix + ":domain:" + domain
}
