package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/garrettladley/notisync/internal/server/handler"
	servermw "github.com/garrettladley/notisync/internal/server/middleware"
	"github.com/garrettladley/notisync/internal/service/inbox"
	"github.com/garrettladley/notisync/internal/service/token"
	"github.com/garrettladley/notisync/internal/service/webhook"
	"github.com/garrettladley/notisync/internal/storage"
	"github.com/garrettladley/notisync/internal/xhttp/middleware"
)

type Deps struct {
	Inbox     *inbox.Service
	Webhooks  webhook.Service
	Tokens    token.Service
	Limiter   storage.RateLimiter
	Health    []handler.Pinger
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// NewRouter wires every route behind the shared middleware stack.
func NewRouter(d Deps) http.Handler {
	notificationsHandler := handler.NewNotifications(d.Inbox)
	webhookHandler := handler.NewWebhook(d.Webhooks)
	wsHandler := handler.NewWebSocket(d.Inbox, d.Heartbeat)
	healthHandler := handler.NewHealth(d.Health...)

	mux := http.NewServeMux()

	// Unauthenticated routes - protected by global IP rate limiter
	unauthedMux := http.NewServeMux()
	unauthedMux.HandleFunc("GET /health", healthHandler.HandleHealth)
	unauthedMux.HandleFunc("POST /webhooks/notifications", webhookHandler.HandleWebhook)
	unauthedWrapped := middleware.Chain(unauthedMux,
		servermw.RateLimitWithBackend(d.Limiter),
	)
	mux.Handle("/health", unauthedWrapped)
	mux.Handle("/webhooks/", unauthedWrapped)

	// Authenticated routes - protected by bearer token + rate limiter
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/notifications", notificationsHandler.HandleList)
	apiMux.HandleFunc("GET /api/notifications/unread-count", notificationsHandler.HandleUnreadCount)
	apiMux.HandleFunc("GET /api/notifications/recent", notificationsHandler.HandleRecent)
	apiMux.HandleFunc("GET /api/notifications/stats", notificationsHandler.HandleStats)
	apiMux.HandleFunc("POST /api/notifications/read-all", notificationsHandler.HandleMarkAllRead)
	apiMux.HandleFunc("POST /api/notifications/batch-read", notificationsHandler.HandleBatchRead)
	apiMux.HandleFunc("POST /api/notifications/{id}/read", notificationsHandler.HandleMarkRead)
	apiMux.HandleFunc("DELETE /api/notifications/{id}", notificationsHandler.HandleDelete)
	apiMux.HandleFunc("GET /ws", wsHandler.HandleWS)
	apiWrapped := middleware.Chain(apiMux,
		servermw.RateLimitWithBackend(d.Limiter),
		middleware.VersionCheck,
		servermw.BearerAuth(d.Tokens),
	)
	mux.Handle("/api/", apiWrapped)
	mux.Handle("/ws", apiWrapped)

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.ClientSessionID,
		middleware.Logger(logger),
		middleware.Recovery,
		middleware.Logging,
		middleware.SecurityHeaders,
		middleware.Gzip,
	)
}
