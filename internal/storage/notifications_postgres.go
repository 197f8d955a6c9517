package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrettladley/notisync/internal/notification"
)

var _ NotificationStore = (*PostgresNotificationStore)(nil)

const notificationColumns = `id, type, title, message, priority, is_read, action_url, created_at`

type PostgresNotificationStore struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationStore(pool *pgxpool.Pool) *PostgresNotificationStore {
	return &PostgresNotificationStore{pool: pool}
}

func (s *PostgresNotificationStore) Insert(ctx context.Context, userID string, n notification.Notification) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, priority, is_read, action_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, userID, n.Type, n.Title, n.Message, string(n.Priority), n.IsRead,
		pgtype.Text{String: n.ActionURL, Valid: n.ActionURL != ""},
		pgtype.Timestamptz{Time: n.CreatedAt, Valid: true},
	)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresNotificationStore) List(ctx context.Context, userID string, page int, size int) (notification.Page, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return notification.Page{}, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		userID, size, page*size,
	)
	if err != nil {
		return notification.Page{}, fmt.Errorf("list notifications: %w", err)
	}
	content, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return notification.Page{}, fmt.Errorf("scan notifications: %w", err)
	}

	p := notification.Page{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
	}
	if size > 0 {
		p.TotalPages = (total + size - 1) / size
	}
	return p, nil
}

func (s *PostgresNotificationStore) Recent(ctx context.Context, userID string, size int) ([]notification.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`,
		userID, size,
	)
	if err != nil {
		return nil, fmt.Errorf("recent notifications: %w", err)
	}
	ns, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}
	return ns, nil
}

func (s *PostgresNotificationStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *PostgresNotificationStore) MarkRead(ctx context.Context, userID string, id string) (bool, error) {
	var wasRead bool
	err := s.pool.QueryRow(ctx, `
		UPDATE notifications AS n
		SET is_read = TRUE
		FROM (SELECT is_read FROM notifications WHERE id = $1 AND user_id = $2 FOR UPDATE) AS prev
		WHERE n.id = $1 AND n.user_id = $2
		RETURNING prev.is_read`,
		id, userID,
	).Scan(&wasRead)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return !wasRead, nil
}

func (s *PostgresNotificationStore) MarkReadBatch(ctx context.Context, userID string, ids []string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = $1 AND id = ANY($2) AND NOT is_read
		RETURNING id`,
		userID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("mark read batch: %w", err)
	}
	changed, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan ids: %w", err)
	}
	return changed, nil
}

func (s *PostgresNotificationStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresNotificationStore) Delete(ctx context.Context, userID string, id string) (notification.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM notifications
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns,
		id, userID,
	)
	if err != nil {
		return notification.Notification{}, fmt.Errorf("delete notification: %w", err)
	}
	n, err := pgx.CollectExactlyOneRow(rows, scanNotification)
	if errors.Is(err, pgx.ErrNoRows) {
		return notification.Notification{}, ErrNotFound
	}
	if err != nil {
		return notification.Notification{}, fmt.Errorf("scan deleted notification: %w", err)
	}
	return n, nil
}

func (s *PostgresNotificationStore) Stats(ctx context.Context, userID string) (notification.Stats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT type, priority, COUNT(*), COUNT(*) FILTER (WHERE NOT is_read)
		FROM notifications
		WHERE user_id = $1
		GROUP BY type, priority`,
		userID,
	)
	if err != nil {
		return notification.Stats{}, fmt.Errorf("notification stats: %w", err)
	}
	defer rows.Close()

	stats := notification.Stats{
		ByType:     make(map[string]int),
		ByPriority: make(map[notification.Priority]int),
	}
	for rows.Next() {
		var (
			typ, priority string
			total, unread int
		)
		if err := rows.Scan(&typ, &priority, &total, &unread); err != nil {
			return notification.Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += total
		stats.Unread += unread
		stats.ByType[typ] += total
		stats.ByPriority[notification.Priority(priority)] += total
	}
	if err := rows.Err(); err != nil {
		return notification.Stats{}, fmt.Errorf("read stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresNotificationStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanNotification(row pgx.CollectableRow) (notification.Notification, error) {
	var (
		n         notification.Notification
		priority  string
		actionURL pgtype.Text
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &priority, &n.IsRead, &actionURL, &createdAt); err != nil {
		return notification.Notification{}, err
	}
	n.Priority = notification.Priority(priority)
	n.ActionURL = actionURL.String
	n.CreatedAt = createdAt.Time.UTC()
	return n, nil
}
