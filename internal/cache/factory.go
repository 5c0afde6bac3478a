package cache

import (
	"fmt"
	"log/slog"

	"primefinder/internal/config"
)

// Make builds the backend named by cfg.Backend. It returns nil for "none".
func Make(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "none":
		slog.Info("search cache disabled")
		return nil, nil
	case "", "memory":
		slog.Info("Using in-memory cache")
		return NewInMemoryCache(), nil
	case "file":
		slog.Info("Using file cache", "dir", cfg.Dir)
		return NewFileCache(cfg.Dir), nil
	case "redis":
		slog.Info("Using Redis for cache", "addr", cfg.RedisAddr)
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword), nil
	case "azure":
		slog.Info("Using Azure Blob Storage for cache", "container", cfg.StorageContainer)
		return NewBlobCache(cfg.StorageAccount, cfg.StorageKey, cfg.StorageContainer)
	case "cosmos":
		slog.Info("Using Azure Cosmos DB for cache", "database", cfg.CosmosDatabase, "container", cfg.CosmosContainer)
		return NewCosmosCache(cfg.CosmosEndpoint, cfg.CosmosKey, cfg.CosmosDatabase, cfg.CosmosContainer)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
