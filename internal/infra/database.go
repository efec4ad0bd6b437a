package infra

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sangathan/sangathan/internal/autherr"
)

// NewPostgresPool opens a small pool against url for the postgres session
// backend and pings it.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, autherr.New(autherr.KindStorage, "postgres: DATABASE_URL is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindStorage, err, "postgres: parse url")
	}
	cfg.MaxConns = clientPoolSize
	cfg.ConnConfig.RuntimeParams["application_name"] = "sangathan-session"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindStorage, err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, autherr.Wrap(autherr.KindStorage, err, "postgres: ping")
	}
	return pool, nil
}
