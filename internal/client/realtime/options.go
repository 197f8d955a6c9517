package realtime

import (
	"log/slog"
	"net/http"
	"time"
)

type clientConfig struct {
	httpClient  *http.Client
	heartbeat   time.Duration
	pingTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*clientConfig)

func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithHeartbeat sets the ping interval. Zero disables pings.
func WithHeartbeat(interval time.Duration) Option {
	return func(c *clientConfig) {
		c.heartbeat = interval
	}
}

func WithPingTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.pingTimeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
