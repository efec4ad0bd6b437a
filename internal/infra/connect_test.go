package infra

import (
	"context"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/sangathan/sangathan/internal/autherr"
)

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if client.Options().PoolSize != clientPoolSize {
		t.Fatalf("expected pool size %d, got %d", clientPoolSize, client.Options().PoolSize)
	}
}

func TestConnectFailuresAreStorageErrors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		connect func() error
		backend string
	}{
		{"redis empty url", func() error { _, err := NewRedisClient(ctx, ""); return err }, "redis"},
		{"redis bad url", func() error { _, err := NewRedisClient(ctx, "http://nope"); return err }, "redis"},
		{"redis unreachable", func() error { _, err := NewRedisClient(ctx, "redis://127.0.0.1:1"); return err }, "redis"},
		{"postgres empty url", func() error { _, err := NewPostgresPool(ctx, ""); return err }, "postgres"},
		{"postgres bad url", func() error { _, err := NewPostgresPool(ctx, "postgres://%zz"); return err }, "postgres"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.connect()
			if !autherr.IsStorage(err) {
				t.Fatalf("expected storage error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.backend+":") {
				t.Fatalf("expected error to name %s, got %v", tc.backend, err)
			}
		})
	}
}
