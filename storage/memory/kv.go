package memorystore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type kvItem struct {
	value   []byte
	expires time.Time
}

// KV is an in-memory store for dialog resumption state with TTL support.
// It is only safe for single-process deployments.
type KV struct {
	mu    sync.Mutex
	items map[string]kvItem
	now   func() time.Time
	cron  *cron.Cron
}

func NewKV() *KV {
	return &KV{items: make(map[string]kvItem), now: time.Now}
}

func (k *KV) expired(it kvItem) bool {
	return !it.expires.IsZero() && k.now().After(it.expires)
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	it, ok := k.items[key]
	if !ok {
		return nil, false, nil
	}
	if k.expired(it) {
		delete(k.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = k.now().Add(ttl)
	}
	k.items[key] = kvItem{value: append([]byte(nil), value...), expires: exp}
	return nil
}

func (k *KV) Del(ctx context.Context, key string) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.items, key)
	return nil
}

// Len reports the number of stored keys, expired ones included.
func (k *KV) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.items)
}

// Sweep drops expired entries and returns how many were removed. Dialogs
// that are abandoned mid-flow never read their state back, so without a
// sweep their entries would stay forever.
func (k *KV) Sweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for key, it := range k.items {
		if k.expired(it) {
			delete(k.items, key)
			n++
		}
	}
	return n
}

// StartSweeper runs Sweep on a standard five-field cron schedule,
// e.g. "*/5 * * * *". Call StopSweeper to release it.
func (k *KV) StartSweeper(spec string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", spec, err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cron != nil {
		return fmt.Errorf("sweeper already running")
	}
	c := cron.New(cron.WithParser(parser))
	c.Schedule(schedule, cron.FuncJob(func() { k.Sweep() }))
	c.Start()
	k.cron = c
	return nil
}

func (k *KV) StopSweeper() {
	k.mu.Lock()
	c := k.cron
	k.cron = nil
	k.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
