package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sangathan/sangathan/internal/auth"
	"github.com/sangathan/sangathan/internal/cli"
	"github.com/sangathan/sangathan/internal/config"
	"github.com/sangathan/sangathan/internal/gateway"
	"github.com/sangathan/sangathan/internal/infra"
	"github.com/sangathan/sangathan/internal/logging"
	"github.com/sangathan/sangathan/internal/session"
	"github.com/sangathan/sangathan/internal/validate"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := session.NewLazy(infra.SessionOpener(cfg))
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close session store", "error", err)
		}
	}()

	gw := gateway.NewHTTP(cfg.GatewayURL, &http.Client{Timeout: cfg.GatewayTimeout}, logger)
	v := validate.New(
		validate.WithOTPLength(cfg.OTPLength),
		validate.WithMinPasswordLength(cfg.MinPasswordLength),
	)
	orch := auth.New(gw, store, auth.WithLogger(logger), auth.WithValidator(v))

	if err := cli.New(orch, os.Stdin, os.Stdout).Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
