package xsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/garrettladley/notisync/internal/cache"
	"github.com/garrettladley/notisync/internal/client/realtime"
	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/observer"
	"github.com/garrettladley/notisync/internal/session"
	"github.com/garrettladley/notisync/internal/xslog"
)

// API is the REST surface the engine reads from and confirms mutations against.
type API interface {
	Server
	Recent(ctx context.Context, size int) ([]notification.Notification, error)
}

// Engine wires the connection, subscriptions, dispatch, polling and optimistic
// mutations together behind the API the application uses.
type Engine struct {
	api      API
	identity string
	logger   *slog.Logger

	cache        *cache.Cache
	manager      *ConnectionManager
	registry     *SubscriptionRegistry
	dispatcher   *MessageDispatcher
	poller       *AdaptivePoller
	synchronizer *Synchronizer

	notificationObservers observer.Set[notification.Notification]
	systemObservers       observer.Set[string]

	mu      sync.Mutex
	tokens  []Token
	started bool
	closed  bool
}

func New(dialer realtime.Dialer, api API, opts ...Option) *Engine {
	cfg := config{
		clock:           RealClock(),
		logger:          slog.Default(),
		backoff:         Backoff{Base: DefaultBackoffBase, Max: DefaultBackoffMax},
		maxAttempts:     DefaultMaxAttempts,
		dialTimeout:     DefaultDialTimeout,
		pollFloor:       DefaultPollFloor,
		pollCeiling:     DefaultPollCeiling,
		pollTimeout:     DefaultPollTimeout,
		mutationTimeout: DefaultMutationTimeout,
		cacheSize:       cache.DefaultLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.identity == "" {
		cfg.identity = session.NewID()
	}

	e := &Engine{
		api:      api,
		identity: cfg.identity,
		logger:   cfg.logger,
		cache:    cache.New(cfg.cacheSize),
	}
	e.notificationObservers.SetLogger(cfg.logger)
	e.systemObservers.SetLogger(cfg.logger)

	e.manager = NewConnectionManager(dialer,
		WithManagerClock(cfg.clock),
		WithBackoff(cfg.backoff),
		WithMaxAttempts(cfg.maxAttempts),
		WithDialTimeout(cfg.dialTimeout),
		WithManagerLogger(cfg.logger),
	)
	e.registry = NewSubscriptionRegistry(e.manager, cfg.identity, cfg.logger)
	e.dispatcher = NewMessageDispatcher(e.registry, cfg.logger)
	e.manager.SetFrameHandler(e.dispatcher)

	e.synchronizer = NewSynchronizer(api, e.cache,
		WithSynchronizerClock(cfg.clock),
		WithMutationTimeout(cfg.mutationTimeout),
		WithSynchronizerLogger(cfg.logger),
	)
	e.poller = NewAdaptivePoller(api, e.applyPolledCount,
		WithPollerClock(cfg.clock),
		WithPollInterval(cfg.pollFloor, cfg.pollCeiling),
		WithPollTimeout(cfg.pollTimeout),
		WithPollerLogger(cfg.logger),
	)
	e.manager.AddObserver(e.poller)

	return e
}

// Start loads the initial window and count, subscribes to every topic, which
// opens the push connection, and starts polling. Load failures are logged;
// polling and push fill the gaps.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started || e.closed {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	e.logger.Info("starting engine", xslog.Identity(e.identity))

	if recent, err := e.api.Recent(ctx, e.cache.Limit()); err != nil {
		e.logger.Warn("failed to load recent notifications", xslog.Error(err))
	} else {
		e.synchronizer.Replace(recent)
	}
	if n, err := e.api.UnreadCount(ctx); err != nil {
		e.logger.Warn("failed to load unread count", xslog.Error(err))
	} else {
		e.synchronizer.ApplyUnreadCount(n)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tokens := []Token{
		e.registry.Subscribe(notification.TopicUserNotification, e.handleNotification),
		e.registry.Subscribe(notification.TopicUnreadCount, e.handleUnreadCount),
		e.registry.Subscribe(notification.TopicReadReceipt, e.handleReadReceipt),
		e.registry.Subscribe(notification.TopicSystemBroadcast, e.handleSystemMessage),
	}

	e.mu.Lock()
	e.tokens = tokens
	e.mu.Unlock()

	e.poller.Start()
	return nil
}

// Close stops polling, drops every subscription, which closes the push
// connection, and waits for background work. The engine cannot be restarted.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	tokens := e.tokens
	e.tokens = nil
	e.mu.Unlock()

	e.poller.Stop()
	for _, t := range tokens {
		e.registry.Unsubscribe(t)
	}
	e.synchronizer.Close()
	e.manager.Dispose()
	e.logger.Info("engine closed")
}

func (e *Engine) Identity() string { return e.identity }

// Subscribe registers a raw listener on topic alongside the engine's own.
func (e *Engine) Subscribe(topic notification.Topic, l Listener) Token {
	return e.registry.Subscribe(topic, l)
}

func (e *Engine) Unsubscribe(t Token) {
	e.registry.Unsubscribe(t)
}

func (e *Engine) OnNotification(fn func(notification.Notification)) func() {
	return e.notificationObservers.Add(fn)
}

func (e *Engine) OnUnreadCountChange(fn func(int)) func() {
	return e.cache.OnUnreadChange(fn)
}

// OnNotificationsChange is called whenever the cached window changes.
func (e *Engine) OnNotificationsChange(fn func()) func() {
	return e.cache.OnChange(fn)
}

func (e *Engine) OnSystemMessage(fn func(string)) func() {
	return e.systemObservers.Add(fn)
}

func (e *Engine) OnStateChange(fn func(ConnectionState)) func() {
	return e.manager.OnStateChange(fn)
}

func (e *Engine) OnDegraded(fn func(bool)) func() {
	return e.manager.OnDegraded(fn)
}

func (e *Engine) OnMutationError(fn func(MutationError)) func() {
	return e.synchronizer.OnMutationError(fn)
}

func (e *Engine) ConnectionState() ConnectionState { return e.manager.State() }

func (e *Engine) Degraded() bool { return e.manager.Degraded() }

func (e *Engine) UnreadCount() int { return e.cache.UnreadCount() }

// Recent returns the cached window, newest first.
func (e *Engine) Recent() []notification.Notification { return e.cache.Recent() }

func (e *Engine) PollingState() PollingState { return e.poller.State() }

func (e *Engine) Pending() []PendingMutation { return e.synchronizer.Pending() }

func (e *Engine) MarkRead(ctx context.Context, id string) error {
	return e.synchronizer.MarkRead(ctx, id)
}

func (e *Engine) MarkAllRead(ctx context.Context) error {
	return e.synchronizer.MarkAllRead(ctx)
}

func (e *Engine) DeleteNotification(ctx context.Context, id string) error {
	return e.synchronizer.Delete(ctx, id)
}

func (e *Engine) BatchMarkRead(ctx context.Context, ids []string) error {
	return e.synchronizer.BatchMarkRead(ctx, ids)
}

func (e *Engine) handleNotification(payload any) {
	n, ok := payload.(notification.Notification)
	if !ok {
		return
	}
	e.synchronizer.ApplyPush(n)
	e.notificationObservers.Notify(n)
}

func (e *Engine) handleUnreadCount(payload any) {
	u, ok := payload.(notification.UnreadCount)
	if !ok {
		return
	}
	e.poller.Observe(u.UnreadCount)
	if !e.synchronizer.ApplyUnreadCount(u.UnreadCount) {
		e.logger.Debug("skipped pushed unread count, mutations pending", xslog.UnreadCount(u.UnreadCount))
	}
}

func (e *Engine) handleReadReceipt(payload any) {
	r, ok := payload.(notification.ReadReceipt)
	if !ok {
		return
	}
	e.synchronizer.ApplyRemoteRead(r.NotificationID)
}

func (e *Engine) handleSystemMessage(payload any) {
	m, ok := payload.(notification.SystemMessage)
	if !ok {
		return
	}
	e.systemObservers.Notify(m.Message)
}

func (e *Engine) applyPolledCount(n int) {
	if !e.synchronizer.ApplyUnreadCount(n) {
		e.logger.Debug("skipped polled unread count, mutations pending", xslog.UnreadCount(n))
	}
}

type config struct {
	clock           Clock
	logger          *slog.Logger
	identity        string
	backoff         Backoff
	maxAttempts     int
	dialTimeout     time.Duration
	pollFloor       time.Duration
	pollCeiling     time.Duration
	pollTimeout     time.Duration
	mutationTimeout time.Duration
	cacheSize       int
}

type Option func(*config)

func WithClock(clock Clock) Option {
	return func(c *config) { c.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithIdentity sets the client session identity sent on connect. A fresh
// session id is used when empty.
func WithIdentity(identity string) Option {
	return func(c *config) { c.identity = identity }
}

func WithReconnect(b Backoff, maxAttempts int) Option {
	return func(c *config) {
		c.backoff = b
		c.maxAttempts = maxAttempts
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *config) { c.dialTimeout = d }
}

func WithPolling(floor, ceiling, timeout time.Duration) Option {
	return func(c *config) {
		c.pollFloor = floor
		c.pollCeiling = ceiling
		c.pollTimeout = timeout
	}
}

func WithMutationDeadline(d time.Duration) Option {
	return func(c *config) { c.mutationTimeout = d }
}

func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}
