package authhttp

import (
	"net/http"
	"strings"
)

// RateLimiter is a minimal interface used by adapters.
type RateLimiter interface {
	AllowNamed(bucket string, key string) (bool, error)
}

// AllowNamed applies a per-IP limit using the provided bucket name, for hosts
// mounting their own routes next to the dialog API. It fails open on limiter
// error and when the client IP is unknown.
func AllowNamed(r *http.Request, rl RateLimiter, bucket string) bool {
	return allowIP(rl, bucket, DefaultClientIP()(r))
}

func (s *Service) allow(r *http.Request, bucket string) bool {
	if s == nil {
		return true
	}
	ipFn := s.clientIP
	if ipFn == nil {
		ipFn = DefaultClientIP()
	}
	return allowIP(s.rl, bucket, ipFn(r))
}

func allowIP(rl RateLimiter, bucket, ip string) bool {
	if rl == nil || strings.TrimSpace(ip) == "" {
		return true
	}
	ok, err := rl.AllowNamed(bucket, "dialog:"+bucket+":ip:"+ip)
	if err != nil {
		return true
	}
	return ok
}
