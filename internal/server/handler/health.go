package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/garrettladley/notisync/internal/xerrors"
	"github.com/garrettladley/notisync/internal/xhttp"
	"github.com/garrettladley/notisync/internal/xslog"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	deps []Pinger
}

func NewHealth(deps ...Pinger) *Health {
	return &Health{deps: deps}
}

// HandleHealth handles GET /health.
func (h *Health) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	for _, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			xslog.FromContext(ctx).WarnContext(ctx, "health check failed", xslog.Error(err))
			xerrors.WriteError(ctx, w, xerrors.ServiceUnavailable(xerrors.WithCause(err)))
			return
		}
	}
	xhttp.WriteOK(w, map[string]string{"status": "ok"})
}
