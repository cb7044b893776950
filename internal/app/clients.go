package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/insightflow-backend/internal/clients/gcp"
	"github.com/yungbote/insightflow-backend/internal/clients/httpfetch"
	"github.com/yungbote/insightflow-backend/internal/clients/redis"
	"github.com/yungbote/insightflow-backend/internal/clients/unsplash"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type Clients struct {
	Redis        *goredis.Client
	DatasetCache redis.DatasetCache
	GCSObjects   gcp.ObjectReader
	HTTPFetch    httpfetch.Fetcher
	Unsplash     unsplash.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Redis is optional; without it parsed datasets are not cached.
	rdb, err := redis.NewClient(ctx, log, cfg.Redis)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	if rdb != nil {
		c.Redis = rdb
		c.DatasetCache = redis.NewDatasetCache(log, rdb, cfg.Dataset.CacheTTL)
	}

	// Gcs
	if cfg.GCS.Enabled {
		objects, err := gcp.NewObjectReader(ctx, log, gcp.ClientOptions(cfg.GCS.Credentials)...)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init gcs: %w", err)
		}
		c.GCSObjects = objects
	}

	c.HTTPFetch = httpfetch.New(log, cfg.Dataset.Fetch)
	c.Unsplash = unsplash.New(log, cfg.Unsplash)
	if cfg.Unsplash.AccessKey == "" {
		log.Warn("UNSPLASH_ACCESS_KEY not set; image search is disabled")
	}
	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.GCSObjects != nil {
		_ = c.GCSObjects.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
