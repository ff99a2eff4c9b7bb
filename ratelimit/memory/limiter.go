package memorylimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit allows Limit requests per Window for one key, refilled smoothly.
type Limit struct {
	Limit  int
	Window time.Duration
}

type entry struct {
	lim    *rate.Limiter
	window time.Duration
	seen   time.Time
}

// Limiter is an in-process token-bucket limiter keyed by caller-supplied
// keys. Buckets without a configured limit fall back to "default"; if that
// is missing too, requests are allowed.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	entries map[string]*entry
	calls   int
	now     func() time.Time
}

const evictEvery = 1024

func New(limits map[string]Limit) *Limiter {
	cp := make(map[string]Limit, len(limits))
	for k, v := range limits {
		cp[k] = v
	}
	return &Limiter{
		limits:  cp,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
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
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%evictEvery == 0 {
		l.evictIdle(now)
	}
	e := l.entries[key]
	if e == nil {
		e = &entry{
			lim:    rate.NewLimiter(rate.Every(lim.Window/time.Duration(lim.Limit)), lim.Limit),
			window: lim.Window,
		}
		l.entries[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1), nil
}

// evictIdle drops keys that have been quiet for a full window; their bucket
// would be full again anyway.
func (l *Limiter) evictIdle(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.seen) > e.window {
			delete(l.entries, k)
		}
	}
}

// Len reports how many keys are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
