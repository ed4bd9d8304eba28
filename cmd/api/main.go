package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/router"
	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/internal/service"
)

const migrationsDir = "migrations"

func main() {
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	fx.New(
		fx.Provide(
			config.LoadConfig,
			newLogger,
			newDatabase,
			newRedis,
			newHandler,
		),
		server.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	).Run()
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() { _ = log.Sync() }))
	return log, nil
}

func newDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.New(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db, migrationsDir, log); err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}))
	return db, nil
}

// newRedis returns a nil client when Redis is not configured.
func newRedis(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	if !cfg.RedisEnabled() {
		log.Warn("redis not configured; token revocation is kept in memory and rate limiting is off")
		return nil, nil
	}
	client, err := database.NewRedisClient(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(client.Close))
	return client, nil
}

func newHandler(cfg *config.Config, db *gorm.DB, rdb *redis.Client, log *zap.Logger) (http.Handler, error) {
	deps := router.Deps{Config: cfg, DB: db, Redis: rdb, Log: log}

	if cfg.S3Enabled() {
		s3Config, err := config.NewS3Config(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		deps.Images = service.NewS3ImageStore(s3Config)
		log.Info("storing recipe images in S3", zap.String("bucket", cfg.S3Bucket))
	} else {
		baseURL := strings.TrimRight(cfg.MediaBaseURL, "/")
		if baseURL == "" {
			baseURL = "/media"
		}
		deps.Images = service.NewDiskImageStore(cfg.MediaRoot, baseURL)
		deps.MediaDir = cfg.MediaRoot
		log.Info("storing recipe images on disk", zap.String("root", cfg.MediaRoot))
	}

	engine, err := router.SetupRouter(deps)
	if err != nil {
		return nil, err
	}
	return router.Handler(engine), nil
}
