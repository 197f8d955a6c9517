package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

func (e Environment) IsProduction() bool { return e == Production }

type StorageKind string

const (
	StorageMemory   StorageKind = "memory"
	StoragePostgres StorageKind = "postgres"
)

type Config struct {
	Port          string        `env:"PORT" envDefault:"8080"`
	Env           Environment   `env:"ENV" envDefault:"development"`
	Storage       StorageKind   `env:"STORAGE" envDefault:"memory"`
	Database      Database      `envPrefix:"DATABASE_"`
	Redis         Redis         `envPrefix:"REDIS_"`
	JWTSecret     string        `env:"JWT_SECRET,required"`
	WebhookSecret string        `env:"WEBHOOK_SECRET,required"`
	RateLimit     RateLimit     `envPrefix:"RATE_LIMIT_"`
	Heartbeat     time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"2s"`
}

type Database struct {
	URL string `env:"URL"`
}

type Redis struct {
	URL string `env:"URL"`
}

type RateLimit struct {
	Limit float64 `env:"LIMIT" envDefault:"10"`
	Burst int     `env:"BURST" envDefault:"20"`
}

var (
	ErrUnknownStorage  = errors.New("unknown storage")
	ErrMissingDatabase = errors.New("postgres storage requires DATABASE_URL and REDIS_URL")
)

func (c Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
		return nil
	case StoragePostgres:
		if c.Database.URL == "" || c.Redis.URL == "" {
			return ErrMissingDatabase
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.Storage)
	}
}

func ReadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
