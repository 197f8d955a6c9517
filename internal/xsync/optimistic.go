package xsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/garrettladley/notisync/internal/cache"
	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/observer"
	"github.com/garrettladley/notisync/internal/xslog"
)

const DefaultMutationTimeout = 10 * time.Second

var ErrSynchronizerClosed = errors.New("synchronizer closed")

// Server is the REST surface optimistic mutations are confirmed against.
type Server interface {
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
	BatchMarkRead(ctx context.Context, ids []string) (int, error)
	UnreadCount(ctx context.Context) (int, error)
}

// MutationError reports a mutation the server rejected or did not answer in
// time. The cache has already been rolled back when it is delivered.
type MutationError struct {
	MutationID string
	Kind       MutationKind
	TargetIDs  []string
	Err        error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Synchronizer applies user mutations to the cache first and reconciles with
// the server afterwards.
type Synchronizer struct {
	server  Server
	ledger  *ledger
	timeout time.Duration
	logger  *slog.Logger

	errorObservers observer.Set[MutationError]

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewSynchronizer(server Server, c *cache.Cache, opts ...SynchronizerOption) *Synchronizer {
	cfg := synchronizerConfig{
		clock:   RealClock(),
		timeout: DefaultMutationTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		server:  server,
		ledger:  newLedger(c, cfg.clock),
		timeout: cfg.timeout,
		logger:  cfg.logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.errorObservers.SetLogger(cfg.logger)
	return s
}

// OnMutationError registers fn for failed mutations.
func (s *Synchronizer) OnMutationError(fn func(MutationError)) func() {
	return s.errorObservers.Add(fn)
}

func (s *Synchronizer) MarkRead(ctx context.Context, id string) error {
	if s.isClosed() {
		return ErrSynchronizerClosed
	}
	m := s.ledger.markRead(MutationMarkRead, []string{id})
	return s.settle(ctx, m, func(ctx context.Context) error {
		return s.server.MarkRead(ctx, id)
	})
}

func (s *Synchronizer) MarkAllRead(ctx context.Context) error {
	if s.isClosed() {
		return ErrSynchronizerClosed
	}
	m := s.ledger.markAllRead()
	return s.settle(ctx, m, func(ctx context.Context) error {
		_, err := s.server.MarkAllRead(ctx)
		return err
	})
}

func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	if s.isClosed() {
		return ErrSynchronizerClosed
	}
	m := s.ledger.remove(id)
	return s.settle(ctx, m, func(ctx context.Context) error {
		return s.server.Delete(ctx, id)
	})
}

// BatchMarkRead marks ids read as one mutation. Duplicate ids are ignored.
func (s *Synchronizer) BatchMarkRead(ctx context.Context, ids []string) error {
	if s.isClosed() {
		return ErrSynchronizerClosed
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	m := s.ledger.markRead(MutationBatchMarkRead, ids)
	return s.settle(ctx, m, func(ctx context.Context) error {
		_, err := s.server.BatchMarkRead(ctx, ids)
		return err
	})
}

// ApplyRemoteRead records that id was read in another session. Pending
// rollbacks will not un-read it.
func (s *Synchronizer) ApplyRemoteRead(id string) {
	s.ledger.applyRemoteRead(id)
}

// ApplyPush stores a pushed notification.
func (s *Synchronizer) ApplyPush(n notification.Notification) {
	s.ledger.applyPush(n)
}

// ApplyUnreadCount stores an authoritative unread count. It reports false when
// the count was skipped because mutations are still pending.
func (s *Synchronizer) ApplyUnreadCount(n int) bool {
	return s.ledger.setUnread(n)
}

// Replace swaps the cached window, for example after a list refresh.
func (s *Synchronizer) Replace(ns []notification.Notification) {
	s.ledger.replace(ns)
}

func (s *Synchronizer) Pending() []PendingMutation {
	return s.ledger.pendingMutations()
}

// Close waits for background revalidations. Mutations already in flight still
// settle; new ones are refused.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Synchronizer) settle(ctx context.Context, m PendingMutation, call func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := call(callCtx)
	cancel()

	if err != nil {
		s.ledger.rollback(m.ID)

		merr := MutationError{
			MutationID: m.ID,
			Kind:       m.Kind,
			TargetIDs:  m.TargetIDs,
			Err:        err,
		}
		s.logger.Warn("mutation rolled back",
			xslog.MutationID(m.ID),
			xslog.MutationKind(m.Kind.String()),
			xslog.Error(err),
		)
		s.errorObservers.Notify(merr)
		return &merr
	}

	s.ledger.commit(m.ID)
	s.logger.Debug("mutation committed",
		xslog.MutationID(m.ID),
		xslog.MutationKind(m.Kind.String()),
	)
	s.revalidate()
	return nil
}

// revalidate refreshes the unread count from the server so the optimistic
// value is not trusted indefinitely.
func (s *Synchronizer) revalidate() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		n, err := s.server.UnreadCount(ctx)
		if err != nil {
			s.logger.Warn("failed to revalidate unread count", xslog.Error(err))
			return
		}
		if !s.ledger.setUnread(n) {
			s.logger.Debug("skipped revalidated unread count, mutations pending", xslog.UnreadCount(n))
		}
	}()
}

func (s *Synchronizer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return slices.Clip(out)
}
