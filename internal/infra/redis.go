package infra

import (
	"context"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis creates and validates a go-redis client. Every job pool worker
// parks a connection in BRPOP, so workers are added on top of the usual pool
// size to keep handlers, the catalog cache and the dispatcher from starving.
func NewRedis(redisURL string, workers int) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = max(opts.PoolSize, 10*runtime.GOMAXPROCS(0)) + workers
	if opts.ClientName == "" {
		opts.ClientName = "billpos"
	}

	rdb := redis.NewClient(opts)

	// Validate connectivity at startup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}
