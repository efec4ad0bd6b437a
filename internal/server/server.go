package server

import (
	"context"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sangathan/sangathan/internal/config"
	"github.com/sangathan/sangathan/internal/gatewaystub"
	"github.com/sangathan/sangathan/internal/notification"
)

// Server wraps the gateway stub's Fiber application.
type Server struct {
	app  *fiber.App
	addr string
}

// New builds the stub server from configuration. cache may be nil, in which
// case OTP request throttling is kept in process memory.
func New(cfg config.Config, cache *redis.Client, logger *slog.Logger) *Server {
	opts := gatewaystub.FromConfig(cfg)
	opts.Cache = cache
	opts.Logger = logger
	opts.Notifier = notification.NewLoggerNotifier(logger)
	return &Server{app: gatewaystub.New(opts), addr: cfg.Stub.Address()}
}

// Listen starts the HTTP server on the configured port.
func (s *Server) Listen() error {
	return s.app.Listen(s.addr)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
