package middleware

import (
	"net/http"

	"github.com/garrettladley/notisync/internal/version"
	"github.com/garrettladley/notisync/internal/xerrors"
	"github.com/garrettladley/notisync/internal/xslog"
)

// VersionCheck rejects clients whose major version the server cannot serve.
func VersionCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientVersion := r.Header.Get(version.Header)
		if clientVersion == "" {
			clientVersion = "unknown"
		}

		if verr := version.CheckCompatibility(clientVersion); verr != nil {
			xslog.FromContext(r.Context()).WarnContext(r.Context(), "client version incompatible",
				xslog.ClientVersion(verr.ClientVersion),
				xslog.MinVersion(verr.MinVersion),
				xslog.RequestPath(r),
			)
			xerrors.WriteError(r.Context(), w, xerrors.UpgradeRequired(xerrors.WithMessage(verr.Error())))
			return
		}

		next.ServeHTTP(w, r)
	})
}
