package session

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session in Redis. Keys may be namespaced per device.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a Redis-backed store. prefix is prepended to USER and TOKEN.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) userKey() string  { return s.prefix + KeyUser }
func (s *RedisStore) tokenKey() string { return s.prefix + KeyToken }

// Save sets both keys inside MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	if err := sess.validate(); err != nil {
		return storageErr(err, "save session")
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.userKey(), string(sess.UserProfile), 0)
		pipe.Set(ctx, s.tokenKey(), sess.AccessToken, 0)
		return nil
	})
	return storageErr(err, "save session")
}

// Load fetches both keys with one MGET.
func (s *RedisStore) Load(ctx context.Context) (Session, bool, error) {
	vals, err := s.client.MGet(ctx, s.userKey(), s.tokenKey()).Result()
	if err != nil {
		return Session{}, false, storageErr(err, "load session")
	}
	user, userOK := vals[0].(string)
	token, tokenOK := vals[1].(string)
	sess, ok := fromPair(user, token, userOK, tokenOK)
	return sess, ok, nil
}

// Clear deletes both keys in one command.
func (s *RedisStore) Clear(ctx context.Context) error {
	return storageErr(s.client.Del(ctx, s.userKey(), s.tokenKey()).Err(), "clear session")
}
