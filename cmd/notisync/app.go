package main

import (
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/garrettladley/notisync/internal/client/notifications"
	"github.com/garrettladley/notisync/internal/client/realtime"
	"github.com/garrettladley/notisync/internal/config"
	"github.com/garrettladley/notisync/internal/paths"
	"github.com/garrettladley/notisync/internal/session"
	"github.com/garrettladley/notisync/internal/xslog"
	"github.com/garrettladley/notisync/internal/xsync"
)

// app holds what every command needs. The TUI owns stdout, so logs always go
// to a rotated file.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	identity string
	api      *notifications.Client
	closer   io.Closer
}

func newApp() (*app, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logPath := cfg.LogFile
	if logPath == "" {
		if logPath, err = paths.Log(); err != nil {
			return nil, err
		}
	}
	logger, closer := xslog.NewFileLogger(xslog.FileConfig{Path: logPath}, xslog.FromEnv())

	identity := session.NewID()
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})

	api := notifications.New(cfg.ServerURL, tokenSource,
		notifications.WithSessionID(identity),
		notifications.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		identity: identity,
		api:      api,
		closer:   closer,
	}, nil
}

func (a *app) engine() (*xsync.Engine, error) {
	wsURL, err := a.cfg.WebSocketURL()
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: a.cfg.Token})
	dialer := realtime.New(wsURL, tokenSource, realtime.WithLogger(a.logger))

	return xsync.New(dialer, a.api,
		xsync.WithLogger(a.logger),
		xsync.WithIdentity(a.identity),
		xsync.WithReconnect(xsync.Backoff{Base: a.cfg.Backoff.Base, Max: a.cfg.Backoff.Max}, a.cfg.Backoff.MaxAttempts),
		xsync.WithPolling(a.cfg.Poll.Floor, a.cfg.Poll.Ceiling, a.cfg.Poll.Timeout),
		xsync.WithMutationDeadline(a.cfg.Mutation.Timeout),
		xsync.WithCacheSize(a.cfg.CacheSize),
	), nil
}

func (a *app) Close() {
	_ = a.closer.Close()
}
