package authhttp

import (
	"time"

	memorylimiter "github.com/PaulFidika/dialogkit/ratelimit/memory"
	redislimiter "github.com/PaulFidika/dialogkit/ratelimit/redis"
)

// Limit configures a named rate limit bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// DefaultRateLimits returns the built-in per-endpoint rate limits.
//
// These limits are enforced per client IP (as determined by the Service's ClientIPFunc).
// Hosts can override by supplying their own limiter via WithRateLimiter(...).
func DefaultRateLimits() map[string]Limit {
	return map[string]Limit{
		"default": {Limit: 120, Window: time.Minute},

		// Every dialog window load hits get once, resumes included.
		RLDialogGet:             {Limit: 60, Window: time.Minute},
		RLDialogIdPVerification: {Limit: 20, Window: 10 * time.Minute},
		RLDialogReturnTo:        {Limit: 60, Window: time.Minute},
	}
}

func ToMemoryLimits(in map[string]Limit) map[string]memorylimiter.Limit {
	out := make(map[string]memorylimiter.Limit, len(in))
	for k, v := range in {
		out[k] = memorylimiter.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}

func ToRedisLimits(in map[string]Limit) map[string]redislimiter.Limit {
	out := make(map[string]redislimiter.Limit, len(in))
	for k, v := range in {
		out[k] = redislimiter.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}
