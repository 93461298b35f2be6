// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config is read from the environment. A .env file in the working directory is loaded
// first by the server's godotenv autoload import.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// RedisAddr enables the cross-instance event bus when set.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	EventsChannel string `env:"LOBBY_EVENTS_CHANNEL" envDefault:"quizlobby:events"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`

	AutoStartInterval time.Duration `env:"AUTOSTART_INTERVAL" envDefault:"1s"`

	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH"`
	TokenExpireTime   time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"0s"`

	// DevEphemeralKeys allows starting without JWT_PUBLIC_KEY_PATH by generating a throwaway
	// key pair. Tokens issued by the account service will not verify against it.
	DevEphemeralKeys bool `env:"JWT_DEV_EPHEMERAL_KEYS" envDefault:"false"`
}

// Load parses and validates the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.AutoStartInterval <= 0 {
		return nil, fmt.Errorf("AUTOSTART_INTERVAL must be positive, got %s", cfg.AutoStartInterval)
	}
	if cfg.JWTPublicKeyPath == "" && !cfg.DevEphemeralKeys {
		return nil, fmt.Errorf("JWT_PUBLIC_KEY_PATH is required unless JWT_DEV_EPHEMERAL_KEYS is set")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the process logger from the logging settings.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
