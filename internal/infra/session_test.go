package infra

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/sangathan/sangathan/internal/autherr"
	"github.com/sangathan/sangathan/internal/config"
	"github.com/sangathan/sangathan/internal/session"
)

func roundTrip(t *testing.T, store session.Store) {
	t.Helper()
	ctx := context.Background()
	want := session.Session{UserProfile: []byte(`{"name":"Sita"}`), AccessToken: "tok"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load(ctx)
	if err != nil || !ok || got.AccessToken != want.AccessToken {
		t.Fatalf("load: %+v %v %v", got, ok, err)
	}
}

func TestSessionOpenerBackends(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cases := map[string]config.Config{
		"memory": {SessionBackend: config.BackendMemory},
		"sqlite": {SessionBackend: config.BackendSQLite, SessionPath: filepath.Join(t.TempDir(), "nested", "session.db")},
		"redis":  {SessionBackend: config.BackendRedis, RedisURL: "redis://" + mr.Addr(), SessionKeyPrefix: "device-1:"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			store, err := SessionOpener(cfg)(context.Background())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if c, ok := store.(io.Closer); ok {
				defer c.Close()
			}
			roundTrip(t, store)
		})
	}
	if !mr.Exists("device-1:" + session.KeyToken) {
		t.Fatalf("redis backend should honour the key prefix")
	}
}

func TestSessionOpenerUnreachableRedisThroughLazy(t *testing.T) {
	lazy := session.NewLazy(SessionOpener(config.Config{SessionBackend: config.BackendRedis, RedisURL: "redis://127.0.0.1:1"}))
	_, _, err := lazy.Load(context.Background())
	if !autherr.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
