package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/rryowa/tubeauth/internal/api"
	"github.com/rryowa/tubeauth/internal/controller"
	"github.com/rryowa/tubeauth/internal/metrics"
	"github.com/rryowa/tubeauth/internal/migrations"
	"github.com/rryowa/tubeauth/internal/service"
	"github.com/rryowa/tubeauth/internal/storage"
	"github.com/rryowa/tubeauth/internal/storage/memory"
	"github.com/rryowa/tubeauth/internal/storage/mongo"
	"github.com/rryowa/tubeauth/internal/storage/postgres"
	"github.com/rryowa/tubeauth/internal/storage/redis"
	"github.com/rryowa/tubeauth/internal/util"
)

func main() {
	ctx := context.Background()

	cfg, err := util.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := util.NewZapLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	var cleanupFuncs []func()

	store, cleanup, err := newPrincipalStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	cleanupFuncs = append(cleanupFuncs, cleanup)

	var limiter service.LoginLimiter
	if cfg.Redis.Addr != "" {
		redisClient, redisCleanup, err := util.NewRedisClient(logger, cfg.Redis)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		cleanupFuncs = append(cleanupFuncs, redisCleanup)
		limiter = redis.NewLoginLimiter(redisClient, cfg.RateLimiter)
	} else {
		logger.Warn("REDIS_ADDR is not set, login rate limiting is disabled")
	}

	keys, err := service.NewSigningKeys(cfg.Token.AccessSecret, cfg.Token.RefreshSecret)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	tokenCodec := service.NewTokenCodec(keys, cfg.Token.Issuer, cfg.Token.Leeway, time.Now)
	webhookService := service.NewWebhookService(logger, cfg.SecurityWebhookURL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	authService := service.NewAuthService(
		service.AuthConfig{
			AccessTTL:        cfg.Token.AccessTTL,
			RefreshTTL:       cfg.Token.RefreshTTL,
			UnifyLoginErrors: cfg.AuthPolicy.UnifyLoginErrors,
		},
		store,
		service.NewPasswordHasher(cfg.AuthPolicy.BcryptCost),
		tokenCodec,
		limiter,
		webhookService,
		metrics.NewAuthMetrics(reg),
		logger,
	)

	// Validate() has already accepted the value.
	sameSite, _ := cfg.Cookie.SameSiteMode()
	authController := controller.NewController(logger, authService, controller.CookieSettings{
		Secure:     cfg.Cookie.Secure,
		Domain:     cfg.Cookie.Domain,
		SameSite:   sameSite,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
	})

	apiServer, err := api.NewAPI(authController, authService, reg, &cfg.Server, logger, cleanupFuncs)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	apiServer.Run(ctx)
}

func newPrincipalStore(ctx context.Context, cfg util.StorageConfig, logger *zap.SugaredLogger) (storage.PrincipalStore, func(), error) {
	switch cfg.Driver {
	case util.StorageDriverPostgres:
		db, dbCleanup, err := util.NewDBConnection(logger, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunMigrations(db, logger); err != nil {
			dbCleanup()
			return nil, nil, err
		}
		return postgres.NewStorage(db), dbCleanup, nil

	case util.StorageDriverMongo:
		client, mongoCleanup, err := util.NewMongoClient(logger, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		store, err := mongo.NewPrincipalStore(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			mongoCleanup()
			return nil, nil, err
		}
		return store, mongoCleanup, nil

	case util.StorageDriverMemory:
		logger.Warn("Using in-memory storage, principals are lost on restart")
		return memory.NewPrincipalStore(logger), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
