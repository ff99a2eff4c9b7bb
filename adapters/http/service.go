package authhttp

import (
	"net/http"

	core "github.com/PaulFidika/dialogkit/core"
	memorylimiter "github.com/PaulFidika/dialogkit/ratelimit/memory"
	redislimiter "github.com/PaulFidika/dialogkit/ratelimit/redis"
	memorystore "github.com/PaulFidika/dialogkit/storage/memory"
	redisstore "github.com/PaulFidika/dialogkit/storage/redis"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// SessionHeader carries the dialog session id between the dialog window
// and the server across reloads.
const SessionHeader = "X-Dialog-Session"

// Service wraps core.Service with net/http mounting helpers.
type Service struct {
	svc       *core.Service
	verifier  *SessionVerifier
	publisher core.Publisher
	rl        RateLimiter
	clientIP  ClientIPFunc
}

// NewService constructs a core.Service and wraps it for net/http mounting.
func NewService(cfg core.Config) (*Service, error) {
	coreSvc, err := core.NewService(cfg)
	if err != nil {
		return nil, err
	}
	// Default to in-memory ephemeral store for dev/single-instance use.
	coreSvc = coreSvc.WithEphemeralStore(memorystore.NewKV(), core.EphemeralMemory)
	return &Service{
		svc:      coreSvc,
		rl:       memorylimiter.New(ToMemoryLimits(DefaultRateLimits())),
		clientIP: DefaultClientIP(),
	}, nil
}

// WithRedis moves dialog state to Redis and replaces the built-in in-memory
// limiter with a Redis one. A limiter set via WithRateLimiter is kept.
func (s *Service) WithRedis(rd *redis.Client) *Service {
	if rd == nil {
		return s
	}
	s.svc = s.svc.WithEphemeralStore(redisstore.NewKV(rd), core.EphemeralRedis)
	if _, builtin := s.rl.(*memorylimiter.Limiter); builtin {
		s.rl = redislimiter.New(rd, ToRedisLimits(DefaultRateLimits()))
	}
	return s
}

func (s *Service) WithEphemeralStore(store core.EphemeralStore, mode core.EphemeralMode) *Service {
	s.svc = s.svc.WithEphemeralStore(store, mode)
	return s
}

func (s *Service) WithPrimaryAddressRecorder(r core.PrimaryAddressRecorder) *Service {
	s.svc = s.svc.WithPrimaryAddressRecorder(r)
	return s
}

func (s *Service) WithRateLimiter(rl RateLimiter) *Service { s.rl = rl; return s }
func (s *Service) DisableRateLimiter() *Service            { s.rl = nil; return s }
func (s *Service) WithClientIPFunc(fn ClientIPFunc) *Service {
	if fn == nil {
		s.clientIP = DefaultClientIP()
		return s
	}
	s.clientIP = fn
	return s
}

func (s *Service) WithSessionVerifier(v *SessionVerifier) *Service { s.verifier = v; return s }

// WithPublisher forwards every outbox event to p after a Get call.
func (s *Service) WithPublisher(p core.Publisher) *Service { s.publisher = p; return s }

func (s *Service) WithLogger(l *log.Logger) *Service {
	s.svc = s.svc.WithLogger(l)
	return s
}

func (s *Service) Core() *core.Service { return s.svc }

// Handler serves the dialog JSON API under /dialog/*.
func (s *Service) Handler() http.Handler {
	if s == nil || s.svc == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { serverErr(w, "dialog_not_initialized") })
	}
	mux := http.NewServeMux()
	mux.Handle("POST /dialog/get", http.HandlerFunc(s.handleDialogGetPOST))
	mux.Handle("POST /dialog/idp_verification", http.HandlerFunc(s.handleIdPVerificationPOST))
	mux.Handle("GET /dialog/return_to", http.HandlerFunc(s.handleReturnToGET))
	return OptionalSession(s.verifier)(mux)
}
