package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sangathan/sangathan/internal/autherr"
	"github.com/sangathan/sangathan/internal/config"
	"github.com/sangathan/sangathan/internal/gateway"
	"github.com/sangathan/sangathan/internal/logging"
	"github.com/sangathan/sangathan/internal/validate"
)

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	cfg := config.Config{AppName: "Sangathan", OTPLength: 6}
	srv := New(cfg, nil, logging.Discard())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	gw := gateway.NewHTTP("http://"+ln.Addr().String(), &http.Client{Timeout: 5 * time.Second}, nil)
	_, err = gw.Login(context.Background(), validate.Credentials{Phone: "9800000000", Password: "Secret123!"})
	var ae *autherr.Error
	if !errors.As(err, &ae) || ae.Kind != autherr.KindAuth {
		t.Fatalf("unknown member should be an auth failure over the wire, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
