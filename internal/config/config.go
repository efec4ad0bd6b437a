package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Session backends.
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config captures runtime configuration for the client and the local gateway stub.
type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"Sangathan"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	GatewayURL     string        `env:"GATEWAY_URL" envDefault:"http://localhost:8080"`
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"30s"`

	SessionBackend   string `env:"SESSION_BACKEND" envDefault:"sqlite"`
	SessionPath      string `env:"SESSION_PATH"`
	SessionKeyPrefix string `env:"SESSION_KEY_PREFIX"`
	RedisURL         string `env:"REDIS_URL"`
	DatabaseURL      string `env:"DATABASE_URL"`

	OTPLength         int `env:"OTP_LENGTH" envDefault:"6"`
	MinPasswordLength int `env:"MIN_PASSWORD_LENGTH" envDefault:"8"`

	Stub StubConfig
}

// StubConfig configures the local gateway stub.
type StubConfig struct {
	Port                 string        `env:"PORT" envDefault:"8080"`
	ShutdownPeriod       time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	JWTSecret            string        `env:"STUB_JWT_SECRET" envDefault:"dev-secret"`
	AccessTokenTTL       time.Duration `env:"STUB_ACCESS_TOKEN_TTL" envDefault:"24h"`
	OTPTTL               time.Duration `env:"STUB_OTP_TTL" envDefault:"5m"`
	OTPMaxAttempts       int           `env:"STUB_OTP_MAX_ATTEMPTS" envDefault:"5"`
	OTPRequestsPerMinute int           `env:"STUB_OTP_REQUESTS_PER_MINUTE" envDefault:"3"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))

	if cfg.SessionBackend == BackendSQLite && cfg.SessionPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		cfg.SessionPath = filepath.Join(dir, "sangathan", "session.db")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend-specific requirements.
func (c Config) Validate() error {
	switch c.SessionBackend {
	case BackendSQLite:
		if c.SessionPath == "" {
			return fmt.Errorf("SESSION_PATH must be set for the sqlite backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set for the redis backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", c.OTPLength)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

// Address returns the stub listen address in the format Fiber expects.
func (s StubConfig) Address() string {
	if strings.HasPrefix(s.Port, ":") {
		return s.Port
	}
	return fmt.Sprintf(":%s", s.Port)
}
