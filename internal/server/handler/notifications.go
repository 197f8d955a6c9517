package handler

import (
	"context"
	"net/http"
	"strconv"

	go_json "github.com/goccy/go-json"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/xcontext"
	"github.com/garrettladley/notisync/internal/xerrors"
	"github.com/garrettladley/notisync/internal/xhttp"
	"github.com/garrettladley/notisync/internal/xslog"
)

// Inbox is the per-user notification service behind the REST routes.
type Inbox interface {
	List(ctx context.Context, userID string, page int, size int) (notification.Page, error)
	Recent(ctx context.Context, userID string, size int) ([]notification.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context, userID string) (notification.Stats, error)
	MarkRead(ctx context.Context, userID string, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	BatchMarkRead(ctx context.Context, userID string, ids []string) (int, error)
	Delete(ctx context.Context, userID string, id string) error
}

type Notifications struct {
	inbox Inbox
}

func NewNotifications(inbox Inbox) *Notifications {
	return &Notifications{inbox: inbox}
}

type countResponse struct {
	Count int `json:"count"`
}

type updatedResponse struct {
	Updated int `json:"updated"`
}

type batchReadRequest struct {
	NotificationIDs []string `json:"notificationIds"`
}

// HandleList handles GET /api/notifications?page=&size=.
func (h *Notifications) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, err := queryInt(r, "page", 0)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}
	size, err := queryInt(r, "size", 0)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}

	result, err := h.inbox.List(ctx, userID, page, size)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}

	xslog.FromContext(ctx).DebugContext(ctx, "listed notifications",
		xslog.UserID(userID),
		xslog.Count(len(result.Content)),
	)

	xhttp.WriteOK(w, result)
}

// HandleUnreadCount handles GET /api/notifications/unread-count.
func (h *Notifications) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	count, err := h.inbox.UnreadCount(ctx, userID)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}
	xhttp.WriteOK(w, countResponse{Count: count})
}

// HandleRecent handles GET /api/notifications/recent?size=.
func (h *Notifications) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	size, err := queryInt(r, "size", 0)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}

	ns, err := h.inbox.Recent(ctx, userID, size)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}
	xhttp.WriteOK(w, ns)
}

// HandleStats handles GET /api/notifications/stats.
func (h *Notifications) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.inbox.Stats(ctx, userID)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}
	xhttp.WriteOK(w, stats)
}

// HandleMarkRead handles POST /api/notifications/{id}/read.
func (h *Notifications) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.inbox.MarkRead(ctx, userID, r.PathValue("id")); err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}
	xhttp.WriteNoContent(w)
}

// HandleMarkAllRead handles POST /api/notifications/read-all.
func (h *Notifications) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	updated, err := h.inbox.MarkAllRead(ctx, userID)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}
	xhttp.WriteOK(w, updatedResponse{Updated: updated})
}

// HandleBatchRead handles POST /api/notifications/batch-read.
func (h *Notifications) HandleBatchRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req batchReadRequest
	if err := go_json.NewDecoder(r.Body).Decode(&req); err != nil {
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("invalid JSON body"), xerrors.WithCause(err)))
		return
	}
	if len(req.NotificationIDs) == 0 {
		xerrors.WriteError(ctx, w, xerrors.Validation(map[string]string{
			"notificationIds": "must not be empty",
		}))
		return
	}

	updated, err := h.inbox.BatchMarkRead(ctx, userID, req.NotificationIDs)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}
	xhttp.WriteOK(w, updatedResponse{Updated: updated})
}

// HandleDelete handles DELETE /api/notifications/{id}.
func (h *Notifications) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.inbox.Delete(ctx, userID, r.PathValue("id")); err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}
	xhttp.WriteNoContent(w)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := xcontext.GetUserID(r.Context())
	if !ok {
		xerrors.WriteError(r.Context(), w, xerrors.Unauthorized(xerrors.WithMessage("missing user context")))
		return "", false
	}
	return userID, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, xerrors.BadRequest(xerrors.WithMessage("invalid " + key + " parameter (expected non-negative integer)"))
	}
	return v, nil
}
