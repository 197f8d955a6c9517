package middleware

import (
	"errors"
	"net/http"

	"github.com/garrettladley/notisync/internal/service/token"
	"github.com/garrettladley/notisync/internal/xcontext"
	"github.com/garrettladley/notisync/internal/xerrors"
	"github.com/garrettladley/notisync/internal/xhttp"
	"github.com/garrettladley/notisync/internal/xslog"
)

// QueryToken is read when a websocket upgrade carries no Authorization
// header, as browsers cannot set one.
const QueryToken = "access_token"

// BearerAuth validates bearer tokens and sets the verified user ID in context.
func BearerAuth(tokenService token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := xslog.FromContext(ctx)

			authHeader := r.Header.Get(xhttp.Authorization)
			if authHeader == "" && xhttp.IsWebsocketUpgrade(r) {
				if raw := r.URL.Query().Get(QueryToken); raw != "" {
					authHeader = "Bearer " + raw
				}
			}

			userID, err := tokenService.ValidateAndGetUserID(ctx, authHeader)
			if err != nil {
				logger.WarnContext(ctx, "token validation failed",
					xslog.RequestPath(r),
					xslog.ErrorGroup(err))

				switch {
				case errors.Is(err, token.ErrMissingToken):
					xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("missing Authorization header")))
				case errors.Is(err, token.ErrInvalidToken):
					xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("invalid or expired token")))
				default:
					xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithMessage("token validation failed"), xerrors.WithCause(err)))
				}
				return
			}

			ctx = xcontext.SetUserID(ctx, userID)
			ctx = xslog.WithAttrs(ctx, xslog.UserID(userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
