package cache

import (
	"fmt"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	"journal-service/config"
)

// InitializeCache opens the session store selected by CACHE_TYPE
func InitializeCache(cfg *config.Config) (cache.Cache, error) {
	c, err := cache.New(cache.Config{
		Type:          cfg.CacheType,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("Failed to initialize cache", zap.String("type", cfg.CacheType), zap.Error(err))
		return nil, fmt.Errorf("initialize %s cache: %w", cfg.CacheType, err)
	}

	logger.Info("Cache initialized", zap.String("type", cfg.CacheType))
	return c, nil
}
