package infra

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/sangathan/sangathan/internal/autherr"
)

// clientPoolSize bounds connections per process; one CLI run or one stub
// instance never needs more.
const clientPoolSize = 4

// NewRedisClient connects to the Redis at url and pings it. Failures are
// storage errors naming the redis backend.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, autherr.New(autherr.KindStorage, "redis: REDIS_URL is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindStorage, err, "redis: parse url")
	}
	opt.PoolSize = clientPoolSize

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, autherr.Wrap(autherr.KindStorage, errors.Join(err, client.Close()), "redis: ping")
	}
	return client, nil
}
