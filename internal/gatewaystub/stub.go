// Package gatewaystub is an in-process stand-in for the remote auth API. It
// speaks the same JSON contract as the production service so the client can be
// exercised end to end in tests and local runs.
package gatewaystub

import (
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/sangathan/sangathan/internal/config"
	"github.com/sangathan/sangathan/internal/identity"
	"github.com/sangathan/sangathan/internal/logging"
	"github.com/sangathan/sangathan/internal/middleware"
	"github.com/sangathan/sangathan/internal/notification"
)

// Options configures the stub. Zero values get usable defaults.
type Options struct {
	AppName        string
	JWTSecret      string
	AccessTokenTTL time.Duration

	OTPLength            int
	OTPTTL               time.Duration
	OTPMaxAttempts       int
	OTPRequestsPerWindow int
	OTPRequestWindow     time.Duration

	// Cache, when set, backs the OTP request throttle and the health check.
	Cache    *redis.Client
	Users    identity.Repository
	Notifier notification.Notifier
	Logger   *slog.Logger

	// Codes generates OTP codes. Defaults to RandomDigits(OTPLength).
	Codes func() (string, error)
	Now   func() time.Time
	// FastHash lowers the bcrypt cost. Tests only.
	FastHash bool
}

// FromConfig maps the stub section of the environment config onto Options.
func FromConfig(cfg config.Config) Options {
	return Options{
		AppName:              cfg.AppName + " gateway stub",
		JWTSecret:            cfg.Stub.JWTSecret,
		AccessTokenTTL:       cfg.Stub.AccessTokenTTL,
		OTPLength:            cfg.OTPLength,
		OTPTTL:               cfg.Stub.OTPTTL,
		OTPMaxAttempts:       cfg.Stub.OTPMaxAttempts,
		OTPRequestsPerWindow: cfg.Stub.OTPRequestsPerMinute,
		OTPRequestWindow:     time.Minute,
	}
}

func (o *Options) defaults() {
	if o.JWTSecret == "" {
		o.JWTSecret = "dev-secret"
	}
	if o.AccessTokenTTL <= 0 {
		o.AccessTokenTTL = 24 * time.Hour
	}
	if o.OTPLength <= 0 {
		o.OTPLength = 6
	}
	if o.OTPTTL <= 0 {
		o.OTPTTL = 5 * time.Minute
	}
	if o.OTPMaxAttempts <= 0 {
		o.OTPMaxAttempts = 5
	}
	if o.OTPRequestsPerWindow <= 0 {
		o.OTPRequestsPerWindow = 3
	}
	if o.OTPRequestWindow <= 0 {
		o.OTPRequestWindow = time.Minute
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.Users == nil {
		o.Users = identity.NewMemoryRepository()
	}
	if o.Notifier == nil {
		o.Notifier = notification.NewLoggerNotifier(o.Logger)
	}
	if o.Codes == nil {
		o.Codes = RandomDigits(o.OTPLength)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// New builds the stub's Fiber application with all routes wired.
func New(opts Options) *fiber.App {
	opts.defaults()

	app := fiber.New(fiber.Config{
		AppName:               opts.AppName,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler(opts.Logger),
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(opts.Logger))

	ids := identity.NewService(opts.Users)
	if opts.FastHash {
		ids = identity.NewFastService(opts.Users)
	}
	h := &handler{
		ids:      ids,
		otps:     newOTPIssuer(opts.OTPTTL, opts.OTPMaxAttempts, opts.Codes, opts.Now),
		tokens:   tokenIssuer{secret: []byte(opts.JWTSecret), ttl: opts.AccessTokenTTL, now: opts.Now},
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}

	var counter middleware.Counter = middleware.NewMemoryCounter()
	if opts.Cache != nil {
		counter = middleware.NewRedisCounter(opts.Cache)
	}

	registerHealth(app, opts.Cache)

	group := app.Group("/auth")
	group.Post("/login", h.login)
	group.Post("/signup", h.signup)
	group.Post("/otp/request", middleware.OTPRateLimit(counter, opts.OTPRequestsPerWindow, opts.OTPRequestWindow), h.requestOTP)
	group.Post("/otp/verify", h.verifyOTP)

	return app
}
