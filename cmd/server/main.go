package main

import (
	"context"
	"wallstreetvotes/internal/config"
	"wallstreetvotes/internal/db"
	"wallstreetvotes/internal/router"
	"wallstreetvotes/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const memoryCacheSize = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	cfg.SetupLogger()

	// Initialize Database
	conn, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}

	cache, err := openCache(cfg)
	if err != nil {
		logrus.Fatalf("failed to set up cache: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r, err := router.New(cfg, conn, cache)
	if err != nil {
		logrus.Fatalf("failed to build router: %v", err)
	}
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	logrus.Infof("Wall Street Votes starting on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logrus.Fatal(err)
	}
}

func openCache(cfg *config.Config) (utils.Cache, error) {
	if cfg.CacheBackend != "redis" {
		return utils.NewMemoryCache(memoryCacheSize)
	}

	// Setup Redis client
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return utils.NewRedisCache(rdb), nil
}
