package notifications

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/garrettladley/notisync/internal/notification"
)

const (
	defaultBatchSize  = 100
	defaultRecentSize = 20
)

func (c *Client) List(ctx context.Context, params *ListParams) (*notification.Page, error) {
	var page notification.Page
	if err := c.do(ctx, http.MethodGet, "/notifications", params.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Recent returns up to size notifications, newest first. A non-positive size
// uses the server default of 20.
func (c *Client) Recent(ctx context.Context, size int) ([]notification.Notification, error) {
	if size <= 0 {
		size = defaultRecentSize
	}
	query := url.Values{"size": {strconv.Itoa(size)}}

	var ns []notification.Notification
	if err := c.do(ctx, http.MethodGet, "/notifications/recent", query, nil, &ns); err != nil {
		return nil, err
	}
	return ns, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) (int, error) {
	var resp updatedResponse
	if err := c.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil, nil)
}

// BatchMarkRead marks ids as read, splitting them into chunks that are sent
// in parallel. It fails if any chunk fails.
func (c *Client) BatchMarkRead(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	chunks := chunk(ids, c.batchSize)
	updated := make([]int, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range chunks {
		g.Go(func() error {
			var resp updatedResponse
			req := batchReadRequest{NotificationIDs: ch}
			if err := c.do(gctx, http.MethodPost, "/notifications/batch-read", nil, req, &resp); err != nil {
				return err
			}
			updated[i] = resp.Updated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int
	for _, n := range updated {
		total += n
	}
	return total, nil
}

func (c *Client) Stats(ctx context.Context) (*notification.Stats, error) {
	var stats notification.Stats
	if err := c.do(ctx, http.MethodGet, "/notifications/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

type updatedResponse struct {
	Updated int `json:"updated"`
}

type batchReadRequest struct {
	NotificationIDs []string `json:"notificationIds"`
}

func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = defaultBatchSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
