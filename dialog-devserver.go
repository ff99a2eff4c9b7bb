package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	authhttp "github.com/PaulFidika/dialogkit/adapters/http"
	"github.com/PaulFidika/dialogkit/core"
	redisbus "github.com/PaulFidika/dialogkit/pubsub/redis"
	"github.com/PaulFidika/dialogkit/riverjobs"
	memorystore "github.com/PaulFidika/dialogkit/storage/memory"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	log "github.com/sirupsen/logrus"
)

type config struct {
	ListenAddr    string
	Issuer        string
	SessionSecret string
	WSAPIBaseURL  string
	RedisURL      string
	DBURL         string
	SweepSpec     string
	LogLevel      string
	RateLimit     bool
	TrustedProxy  []netip.Prefix
	Dialog        core.Config
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	log.SetFormatter(&log.JSONFormatter{})

	cmd := "serve"
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		cmd = strings.TrimSpace(os.Args[1])
	}

	switch cmd {
	case "serve":
		if err := runServe(cfg); err != nil {
			fatal(err)
		}
	case "migrate":
		if err := runMigrate(cfg); err != nil {
			fatal(err)
		}
	default:
		fatal(fmt.Errorf("unknown command %q (supported: serve, migrate)", cmd))
	}
}

func loadConfig() (*config, error) {
	c := &config{
		ListenAddr:    envOr("DIALOG_LISTEN_ADDR", ":8080"),
		Issuer:        strings.TrimRight(strings.TrimSpace(os.Getenv("DIALOG_ISSUER")), "/"),
		SessionSecret: strings.TrimSpace(os.Getenv("DIALOG_SESSION_SECRET")),
		WSAPIBaseURL:  strings.TrimSpace(os.Getenv("WSAPI_BASE_URL")),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		DBURL:         firstEnv("DB_URL", "DATABASE_URL"),
		SweepSpec:     envOr("DIALOG_SWEEP_CRON", "*/5 * * * *"),
		LogLevel:      envOr("DIALOG_LOG_LEVEL", "info"),
		RateLimit:     envBool("DIALOG_RATE_LIMIT", true),
		Dialog: core.Config{
			PathMaxLength:     envInt("DIALOG_PATH_MAX_LENGTH", 0),
			URLMaxLength:      envInt("DIALOG_URL_MAX_LENGTH", 0),
			SiteNameMaxLength: envInt("DIALOG_SITE_NAME_MAX_LENGTH", 0),
			RPAPIs:            parseCSVEnv("DIALOG_RP_APIS", nil),
			ResumeStateTTL:    time.Duration(envInt("DIALOG_RESUME_TTL_SECONDS", 0)) * time.Second,
		},
	}
	for _, raw := range parseCSVEnv("DIALOG_TRUSTED_PROXIES", nil) {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("DIALOG_TRUSTED_PROXIES: %w", err)
		}
		c.TrustedProxy = append(c.TrustedProxy, p)
	}
	if envBool("DIALOG_REQUIRE_SESSION_SECRET", false) && c.SessionSecret == "" {
		return nil, fmt.Errorf("DIALOG_SESSION_SECRET is required when DIALOG_REQUIRE_SESSION_SECRET=true")
	}
	return c, nil
}

func runServe(cfg *config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := authhttp.NewService(cfg.Dialog)
	if err != nil {
		return err
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rd := redis.NewClient(opts)
		defer rd.Close()
		if err := rd.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		svc.WithRedis(rd).WithPublisher(redisbus.NewPublisher(rd, ""))
	} else {
		kv := memorystore.NewKV()
		if err := kv.StartSweeper(cfg.SweepSpec); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		defer kv.StopSweeper()
		svc.WithEphemeralStore(kv, core.EphemeralMemory)
	}

	var wsapi core.PrimaryAddressRecorder
	if cfg.WSAPIBaseURL != "" {
		wsapi = authhttp.NewWSAPIClient(cfg.WSAPIBaseURL, nil)
	}

	if cfg.DBURL != "" && wsapi != nil {
		pg, err := pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()

		workers := river.NewWorkers()
		riverjobs.RegisterUsedAddressAsPrimaryWorker(workers, wsapi)
		rc, err := river.NewClient(riverpgxv5.New(pg), &river.Config{
			Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 4}},
			Workers: workers,
		})
		if err != nil {
			return fmt.Errorf("river client: %w", err)
		}
		if err := rc.Start(ctx); err != nil {
			return fmt.Errorf("start river: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = rc.Stop(sctx)
		}()
		svc.WithPrimaryAddressRecorder(riverjobs.NewEnqueuer(rc))
	} else if wsapi != nil {
		svc.WithPrimaryAddressRecorder(wsapi)
	}

	if cfg.SessionSecret != "" {
		secret := []byte(cfg.SessionSecret)
		svc.WithSessionVerifier(&authhttp.SessionVerifier{
			Issuer: cfg.Issuer,
			Keyfunc: func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			},
		})
	}

	if len(cfg.TrustedProxy) > 0 {
		svc.WithClientIPFunc(authhttp.ClientIPFromForwardedHeaders(cfg.TrustedProxy))
	}
	if !cfg.RateLimit {
		svc.DisableRateLimiter()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("/dialog/", svc.Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(sctx)
	}()
	dcfg := svc.Core().Config()
	log.WithFields(log.Fields{
		"addr":            cfg.ListenAddr,
		"store":           svc.Core().EphemeralMode(),
		"url_max_length":  dcfg.URLMaxLength,
		"path_max_length": dcfg.PathMaxLength,
		"rp_apis":         strings.Join(dcfg.RPAPIs, ","),
		"rate_limit":      cfg.RateLimit,
	}).Info("dialog devserver listening")
	return server.ListenAndServe()
}

// runMigrate creates River's job tables; nothing else in the dialog server
// is backed by Postgres.
func runMigrate(cfg *config) error {
	if cfg.DBURL == "" {
		return fmt.Errorf("DB_URL (or DATABASE_URL) is required for migrate")
	}
	ctx := context.Background()
	pg, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	migrator, err := rivermigrate.New[pgx.Tx](riverpgxv5.New(pg), nil)
	if err != nil {
		return fmt.Errorf("river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("apply river migrations: %w", err)
	}
	for _, v := range res.Versions {
		log.WithField("version", v.Version).Info("applied river migration")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCSVEnv(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func fatal(err error) {
	if err == nil {
		os.Exit(0)
	}
	if errors.Is(err, http.ErrServerClosed) {
		os.Exit(0)
	}
	log.Error(err.Error())
	os.Exit(1)
}
