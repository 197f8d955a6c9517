package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const DefaultServerURL = "http://localhost:8080"

var ErrMissingToken = errors.New("NOTISYNC_TOKEN is not set")

type Config struct {
	ServerURL string   `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	WSURL     string   `env:"WS_URL"`
	Token     string   `env:"TOKEN"`
	Backoff   Backoff  `envPrefix:"BACKOFF_"`
	Poll      Poll     `envPrefix:"POLL_"`
	Mutation  Mutation `envPrefix:"MUTATION_"`
	CacheSize int      `env:"CACHE_SIZE" envDefault:"50"`
	LogFile   string   `env:"LOG_FILE"`
}

func (c Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

type Backoff struct {
	Base        time.Duration `env:"BASE" envDefault:"2s"`
	Max         time.Duration `env:"MAX" envDefault:"30s"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"10"`
}

type Poll struct {
	Floor   time.Duration `env:"FLOOR" envDefault:"30s"`
	Ceiling time.Duration `env:"CEILING" envDefault:"120s"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type Mutation struct {
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// WebSocketURL returns WSURL, or the push endpoint derived from ServerURL.
func (c Config) WebSocketURL() (string, error) {
	if c.WSURL != "" {
		return c.WSURL, nil
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Read loads the client configuration from NOTISYNC_* variables.
func Read() (Config, error) {
	return env.ParseAsWithOptions[Config](env.Options{Prefix: "NOTISYNC_"})
}
