package inbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/storage"
	"github.com/garrettladley/notisync/internal/xerrors"
	"github.com/garrettladley/notisync/internal/xslog"
)

const (
	DefaultPageSize   = 20
	MaxPageSize       = 100
	DefaultRecentSize = 20
	MaxBatchSize      = 100
)

// Service applies notification changes to the store and announces them to
// the user's live connections.
type Service struct {
	store  storage.NotificationStore
	broker storage.Broker
	now    func() time.Time
}

func NewService(store storage.NotificationStore, broker storage.Broker) *Service {
	return &Service{store: store, broker: broker, now: time.Now}
}

// Create stores n for userID, assigning an id and timestamp when missing.
// A notification whose id is already stored is returned unchanged and not
// announced again.
func (s *Service) Create(ctx context.Context, userID string, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	if n.Priority == "" {
		n.Priority = notification.PriorityNormal
	}
	n.IsRead = false

	if err := n.Validate(); err != nil {
		return notification.Notification{}, xerrors.BadRequest(xerrors.WithMessage(err.Error()), xerrors.WithCause(err))
	}

	inserted, err := s.store.Insert(ctx, userID, n)
	if err != nil {
		return notification.Notification{}, err
	}
	if !inserted {
		return n, nil
	}

	s.publish(ctx, userID, notification.TopicUserNotification, n)
	s.publishUnreadCount(ctx, userID)
	return n, nil
}

// Broadcast sends msg to every connected user.
func (s *Service) Broadcast(ctx context.Context, msg notification.SystemMessage) error {
	if err := msg.Validate(); err != nil {
		return xerrors.BadRequest(xerrors.WithMessage(err.Error()), xerrors.WithCause(err))
	}
	e, err := storage.NewEvent("", notification.TopicSystemBroadcast, msg)
	if err != nil {
		return err
	}
	return s.broker.Publish(ctx, e)
}

func (s *Service) List(ctx context.Context, userID string, page int, size int) (notification.Page, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return s.store.List(ctx, userID, page, min(size, MaxPageSize))
}

func (s *Service) Recent(ctx context.Context, userID string, size int) ([]notification.Notification, error) {
	if size <= 0 {
		size = DefaultRecentSize
	}
	return s.store.Recent(ctx, userID, min(size, MaxPageSize))
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

func (s *Service) Stats(ctx context.Context, userID string) (notification.Stats, error) {
	return s.store.Stats(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID string, id string) error {
	changed, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		return notFound(err)
	}
	if changed {
		s.publish(ctx, userID, notification.TopicReadReceipt, notification.ReadReceipt{NotificationID: id})
		s.publishUnreadCount(ctx, userID)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	updated, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.publishUnreadCount(ctx, userID)
	}
	return updated, nil
}

func (s *Service) BatchMarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) > MaxBatchSize {
		return 0, xerrors.Validation(map[string]string{
			"notificationIds": "at most 100 ids per request",
		})
	}
	changed, err := s.store.MarkReadBatch(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	for _, id := range changed {
		s.publish(ctx, userID, notification.TopicReadReceipt, notification.ReadReceipt{NotificationID: id})
	}
	if len(changed) > 0 {
		s.publishUnreadCount(ctx, userID)
	}
	return len(changed), nil
}

func (s *Service) Delete(ctx context.Context, userID string, id string) error {
	removed, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return notFound(err)
	}
	if !removed.IsRead {
		s.publishUnreadCount(ctx, userID)
	}
	return nil
}

// Subscribe returns the live events for userID, broadcasts included.
func (s *Service) Subscribe(ctx context.Context, userID string) (<-chan storage.Event, func(), error) {
	return s.broker.Subscribe(ctx, userID)
}

func (s *Service) publishUnreadCount(ctx context.Context, userID string) {
	count, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "failed to count unread notifications",
			xslog.Error(err),
			xslog.UserID(userID),
		)
		return
	}
	s.publish(ctx, userID, notification.TopicUnreadCount, notification.UnreadCount{UnreadCount: count})
}

// publish is best effort; the change is already stored and clients converge
// by polling.
func (s *Service) publish(ctx context.Context, userID string, topic notification.Topic, payload any) {
	logger := xslog.FromContext(ctx)

	e, err := storage.NewEvent(userID, topic, payload)
	if err == nil {
		err = s.broker.Publish(ctx, e)
	}
	if err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			xslog.Error(err),
			xslog.UserID(userID),
			xslog.Topic(topic.String()),
		)
	}
}

func notFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return xerrors.NotFound(xerrors.WithMessage("notification not found"), xerrors.WithCause(err))
	}
	return err
}
