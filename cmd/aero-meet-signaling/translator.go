package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/config"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/translate"
)

const redisPingTimeout = 2 * time.Second

// newTranslator builds the translation service from config. The returned
// close func releases the cache connection and is always non-nil.
func newTranslator(cfg config.TranslateConfig, m *metrics.Metrics, logger *slog.Logger) (*translate.Service, func(), error) {
	var providers []translate.Provider
	if cfg.LibreURL != "" {
		providers = append(providers, translate.NewLibre(cfg.LibreURL, cfg.LibreAPIKey, cfg.Timeout))
	}
	if cfg.MyMemoryURL != "" {
		providers = append(providers, translate.NewMyMemory(cfg.MyMemoryURL, cfg.Timeout))
	}

	closeFn := func() {}
	var cache translate.Cache
	if cfg.RedisAddr != "" {
		rc := translate.NewRedisCache(cfg.RedisAddr, cfg.RedisTTL)
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		if err := rc.Ping(ctx); err != nil {
			// The cache treats Redis errors as misses, so keep going.
			logger.Warn("translation cache redis unreachable", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()
		cache = rc
		closeFn = func() {
			if err := rc.Close(); err != nil {
				logger.Warn("failed to close translation cache", "err", err)
			}
		}
	} else {
		cache = translate.NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheEvictCount)
	}

	svc, err := translate.NewService(translate.Config{
		Providers: providers,
		Cache:     cache,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	logger.Info("translation enabled", "providers", names, "redis_cache", cfg.RedisAddr != "")
	return svc, closeFn, nil
}
