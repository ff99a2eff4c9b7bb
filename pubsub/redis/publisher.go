package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/PaulFidika/dialogkit/core"
)

// Publisher appends dialog events to a Redis stream per event name
// ("<prefix><name>") so other services can consume them with XREADGROUP.
type Publisher struct {
	rdb    *redis.Client
	prefix string
	maxLen int64
}

func NewPublisher(rdb *redis.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = "dialog:events:"
	}
	return &Publisher{rdb: rdb, prefix: prefix, maxLen: 10000}
}

// WithMaxLen caps each stream (approximate trimming); 0 disables trimming.
func (p *Publisher) WithMaxLen(n int64) *Publisher {
	p.maxLen = n
	return p
}

func (p *Publisher) Stream(name core.EventName) string { return p.prefix + string(name) }

func (p *Publisher) Publish(ctx context.Context, name core.EventName, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	args := &redis.XAddArgs{
		Stream: p.Stream(name),
		Values: map[string]any{"name": string(name), "data": data},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", name, err)
	}
	return nil
}
