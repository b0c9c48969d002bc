package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"signet/internal/config"
	"signet/internal/domain"
	"signet/internal/infra/crypto"
	"signet/internal/infra/db"
	httpinfra "signet/internal/infra/http"
	"signet/internal/infra/notify"
	"signet/internal/infra/policy"
	"signet/internal/infra/ratelimit"
	"signet/internal/infra/render"
	"signet/internal/infra/repomem"
	"signet/internal/infra/tokenstore"
	"signet/internal/usecase"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := newLogger(cfg.LogLevel)
	if cfg.ServerSecret == "" {
		logger.Fatal().Msg("SERVER_SECRET is required")
	}

	clock := time.Now

	var (
		contracts usecase.ContractRepository
		auditRepo usecase.AuditRepository
		certRepo  usecase.CertificateRepository
		dbMode    = "memory"
	)
	store, err := db.NewStore(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	if store.Enabled() {
		if err := store.AutoMigrate(); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
		contracts = db.NewContractRepo(store, clock)
		auditRepo = db.NewAuditRepo(store)
		certRepo = db.NewCertificateRepo(store)
		dbMode = "postgres"
	} else {
		contracts = repomem.NewContractStore(clock)
		auditRepo = repomem.NewAuditStore()
		certRepo = repomem.NewCertificateStore()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	var limiter domain.RateLimiter
	var tokens usecase.TokenStore
	if redisClient != nil {
		limiter, err = ratelimit.NewRedisLimiter(redisClient, clock)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init redis rate limiter")
		}
		tokens, err = tokenstore.NewRedisStore(redisClient)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init redis token store")
		}
	} else {
		limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
			Now:     clock,
			MaxKeys: cfg.RateLimitMaxKeys,
		})
		tokens = tokenstore.NewMemoryStore(clock)
	}

	var gate usecase.PolicyGate
	if cfg.PolicyBundlePath != "" {
		engine, err := policy.NewEngine(context.Background(), cfg.PolicyBundlePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load policy bundle")
		}
		gate = engine
	}

	renderer, err := render.NewTextRenderer()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build certificate renderer")
	}

	hasher := crypto.NewService(cfg.ServerSecret)
	codec := crypto.NewTokenCodec(cfg.ServerSecret, clock)
	audit := usecase.NewAuditEmitter(auditRepo, clock)

	lifecycle := usecase.NewLifecycle(contracts, audit, clock, logger)
	certificates := usecase.NewCertificateService(certRepo, contracts, hasher, renderer, audit, clock, logger)
	signing := &usecase.Signing{
		Contracts:     contracts,
		Tokens:        tokens,
		Codec:         codec,
		Hasher:        hasher,
		Factory:       usecase.NewSignatureFactory(hasher, clock),
		Certificates:  certificates,
		Audit:         audit,
		Notifier:      notify.NewLogNotifier(logger),
		Policy:        gate,
		Clock:         clock,
		Logger:        logger,
		PublicBaseURL: cfg.PublicBaseURL,
	}

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Lifecycle:    lifecycle,
		Signing:      signing,
		Certificates: certificates,
		Audit:        auditRepo,
		RateLimiter:  limiter,
		DBMode:       dbMode,
	})

	logger.Info().
		Str("addr", cfg.HTTPAddr).
		Str("mode", dbMode).
		Bool("redis", redisClient != nil).
		Bool("policy", gate != nil).
		Msg("signetd listening")
	if err := srv.Run(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
