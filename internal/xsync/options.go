package xsync

import (
	"log/slog"
	"time"
)

type managerConfig struct {
	clock       Clock
	backoff     Backoff
	maxAttempts int
	dialTimeout time.Duration
	logger      *slog.Logger
}

type ManagerOption func(*managerConfig)

func WithManagerClock(clock Clock) ManagerOption {
	return func(c *managerConfig) { c.clock = clock }
}

func WithBackoff(b Backoff) ManagerOption {
	return func(c *managerConfig) { c.backoff = b }
}

// WithMaxAttempts sets how many consecutive failures raise the degraded flag.
// Zero never raises it. Retries continue either way.
func WithMaxAttempts(n int) ManagerOption {
	return func(c *managerConfig) { c.maxAttempts = n }
}

func WithDialTimeout(d time.Duration) ManagerOption {
	return func(c *managerConfig) { c.dialTimeout = d }
}

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(c *managerConfig) { c.logger = logger }
}

type pollerConfig struct {
	clock   Clock
	floor   time.Duration
	ceiling time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

type PollerOption func(*pollerConfig)

func WithPollerClock(clock Clock) PollerOption {
	return func(c *pollerConfig) { c.clock = clock }
}

// WithPollInterval bounds the poll interval. The ceiling is raised to the
// floor if it is lower.
func WithPollInterval(floor, ceiling time.Duration) PollerOption {
	return func(c *pollerConfig) {
		c.floor = floor
		c.ceiling = ceiling
	}
}

func WithPollTimeout(d time.Duration) PollerOption {
	return func(c *pollerConfig) { c.timeout = d }
}

func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(c *pollerConfig) { c.logger = logger }
}

type synchronizerConfig struct {
	clock   Clock
	timeout time.Duration
	logger  *slog.Logger
}

type SynchronizerOption func(*synchronizerConfig)

func WithSynchronizerClock(clock Clock) SynchronizerOption {
	return func(c *synchronizerConfig) { c.clock = clock }
}

// WithMutationTimeout bounds each server call. A call that runs out is rolled
// back like any other failure.
func WithMutationTimeout(d time.Duration) SynchronizerOption {
	return func(c *synchronizerConfig) { c.timeout = d }
}

func WithSynchronizerLogger(logger *slog.Logger) SynchronizerOption {
	return func(c *synchronizerConfig) { c.logger = logger }
}
