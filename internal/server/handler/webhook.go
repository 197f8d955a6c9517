package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/service/webhook"
	"github.com/garrettladley/notisync/internal/xerrors"
	"github.com/garrettladley/notisync/internal/xslog"
)

const (
	HeaderSignature          = "X-Notisync-Signature"
	HeaderSignatureTimestamp = "X-Notisync-Signature-Timestamp"
)

const maxWebhookBody = 64 << 10

type Webhook struct {
	service webhook.Service
}

func NewWebhook(service webhook.Service) *Webhook {
	return &Webhook{service: service}
}

// HandleWebhook handles POST /webhooks/notifications requests.
func (h *Webhook) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		logger.ErrorContext(ctx, "failed to read webhook body", xslog.Error(err))
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("failed to read request body")))
		return
	}

	req := webhook.ProcessRequest{
		Body:      body,
		Signature: r.Header.Get(HeaderSignature),
		Timestamp: r.Header.Get(HeaderSignatureTimestamp),
	}

	if err := h.service.ProcessWebhook(ctx, req); err != nil {
		// senders retry on non-2xx, so unknown types are acknowledged
		if errors.Is(err, webhook.ErrUnknownEventType) {
			logger.WarnContext(ctx, "unknown webhook event", xslog.Error(err))
			w.WriteHeader(http.StatusOK)
			return
		}

		if errors.Is(err, webhook.ErrMissingSignature) {
			logger.WarnContext(ctx, "missing webhook signature headers")
			xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("missing signature headers")))
			return
		}

		if errors.Is(err, webhook.ErrInvalidSignature) {
			logger.WarnContext(ctx, "invalid webhook signature")
			xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("invalid signature")))
			return
		}

		if errors.Is(err, webhook.ErrTimestampExpired) {
			logger.WarnContext(ctx, "webhook timestamp too old")
			xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("timestamp too old")))
			return
		}

		if errors.Is(err, notification.ErrInvalid) {
			xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage(err.Error()), xerrors.WithCause(err)))
			return
		}

		if xerrors.As(err) != nil {
			xerrors.WriteError(ctx, w, err)
			return
		}

		logger.ErrorContext(ctx, "failed to process webhook", xslog.Error(err))
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithMessage("failed to process webhook"), xerrors.WithCause(err)))
		return
	}

	w.WriteHeader(http.StatusOK)
}
