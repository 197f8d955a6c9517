package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/garrettladley/notisync/internal/xcontext"
	"github.com/garrettladley/notisync/internal/xhttp"
	"github.com/garrettladley/notisync/internal/xslog"
)

// RequestID reuses an inbound X-Request-ID when it parses as a UUID and
// mints one otherwise. The id is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xhttp.GetRequestHeaderRequestID(r)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		xhttp.SetHeaderRequestID(w, id)
		next.ServeHTTP(w, r.WithContext(xcontext.SetRequestID(r.Context(), id)))
	})
}

func ClientSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := xhttp.GetRequestHeaderSessionID(r); id != "" {
			r = r.WithContext(xcontext.SetSessionID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Logger injects base, tagged with the request and session ids, into the
// request context. It must run after RequestID and ClientSessionID.
func Logger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := base
			if id, ok := xcontext.GetRequestID(ctx); ok {
				logger = logger.With(xslog.RequestID(id))
			}
			if id, ok := xcontext.GetSessionID(ctx); ok {
				logger = logger.With(xslog.SessionID(id))
			}
			next.ServeHTTP(w, r.WithContext(xslog.WithLogger(ctx, logger)))
		})
	}
}
