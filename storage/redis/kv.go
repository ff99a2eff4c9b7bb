package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is a Redis-backed store for dialog resumption state with TTL support.
// Keys are written under an optional prefix so several deployments can
// share one database.
type KV struct {
	rdb    *redis.Client
	prefix string
}

func NewKV(rdb *redis.Client) *KV {
	return &KV{rdb: rdb}
}

// WithPrefix namespaces every key, e.g. "staging:".
func (k *KV) WithPrefix(prefix string) *KV {
	k.prefix = prefix
	return k
}

func (k *KV) key(key string) string { return k.prefix + key }

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := k.rdb.Get(ctx, k.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return k.rdb.Set(ctx, k.key(key), value, ttl).Err()
}

func (k *KV) Del(ctx context.Context, key string) error {
	return k.rdb.Del(ctx, k.key(key)).Err()
}
