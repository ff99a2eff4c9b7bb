package redislimiter

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit allows Limit requests per fixed Window for one key.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is a fixed-window counter shared by every instance talking to the
// same Redis. Buckets without a configured limit fall back to "default".
type Limiter struct {
	rdb     *redis.Client
	limits  map[string]Limit
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

func New(rdb *redis.Client, limits map[string]Limit) *Limiter {
	cp := make(map[string]Limit, len(limits))
	for k, v := range limits {
		cp[k] = v
	}
	return &Limiter{
		rdb:     rdb,
		limits:  cp,
		prefix:  "rl:",
		timeout: 250 * time.Millisecond,
		now:     time.Now,
	}
}

// WithPrefix namespaces counter keys.
func (l *Limiter) WithPrefix(prefix string) *Limiter {
	l.prefix = prefix
	return l
}

func (l *Limiter) limitFor(bucket string) (Limit, bool) {
	lim, ok := l.limits[bucket]
	if !ok {
		lim, ok = l.limits["default"]
	}
	if !ok || lim.Limit <= 0 || lim.Window <= 0 {
		return Limit{}, false
	}
	return lim, true
}

func (l *Limiter) AllowNamed(bucket string, key string) (bool, error) {
	lim, ok := l.limitFor(bucket)
	if !ok {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	window := l.now().UnixNano() / int64(lim.Window)
	k := l.prefix + key + ":" + strconv.FormatInt(window, 10)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, lim.Window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(lim.Limit), nil
}
