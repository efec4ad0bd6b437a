package infra

import (
	"context"
	"fmt"

	"github.com/sangathan/sangathan/internal/config"
	"github.com/sangathan/sangathan/internal/session"
)

// ownedStore closes the connection the store was built on.
type ownedStore struct {
	session.Store
	close func() error
}

func (s ownedStore) Close() error { return s.close() }

// SessionOpener returns the OpenFunc for the configured session backend. The
// connection is made only when the returned function runs.
func SessionOpener(cfg config.Config) session.OpenFunc {
	return func(ctx context.Context) (session.Store, error) {
		switch cfg.SessionBackend {
		case config.BackendSQLite:
			store, err := session.OpenSQLite(ctx, cfg.SessionPath)
			if err != nil {
				return nil, err
			}
			return store, nil
		case config.BackendRedis:
			client, err := NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				return nil, err
			}
			return ownedStore{Store: session.NewRedisStore(client, cfg.SessionKeyPrefix), close: client.Close}, nil
		case config.BackendPostgres:
			pool, err := NewPostgresPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			store, err := session.NewPostgresStore(ctx, pool)
			if err != nil {
				pool.Close()
				return nil, err
			}
			return ownedStore{Store: store, close: func() error { pool.Close(); return nil }}, nil
		case config.BackendMemory:
			return session.NewMemoryStore(), nil
		default:
			return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
		}
	}
}
