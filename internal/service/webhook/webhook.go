package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/xslog"
)

const maxWebhookAge = 5 * time.Minute

// Sink receives verified events.
type Sink interface {
	Create(ctx context.Context, userID string, n notification.Notification) (notification.Notification, error)
	Broadcast(ctx context.Context, msg notification.SystemMessage) error
}

type Processor struct {
	clientSecret string
	sink         Sink
	now          func() time.Time
}

var _ Service = (*Processor)(nil)

func NewProcessor(clientSecret string, sink Sink) *Processor {
	return &Processor{
		clientSecret: clientSecret,
		sink:         sink,
		now:          time.Now,
	}
}

func (p *Processor) ProcessWebhook(ctx context.Context, req ProcessRequest) error {
	logger := xslog.FromContext(ctx)

	if req.Signature == "" || req.Timestamp == "" {
		return ErrMissingSignature
	}

	if !p.verifySignature(req.Body, req.Timestamp, req.Signature) {
		return ErrInvalidSignature
	}

	if !p.isTimestampValid(req.Timestamp) {
		return ErrTimestampExpired
	}

	event, err := ParseEvent(req.Body)
	if err != nil {
		return err
	}

	switch e := event.(type) {
	case NotificationEvent:
		n, err := p.sink.Create(ctx, e.UserID, e.Notification)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "processed webhook",
			xslog.EventType(e.GetType()),
			xslog.UserID(e.UserID),
			xslog.NotificationID(n.ID),
		)
	case SystemEvent:
		if err := p.sink.Broadcast(ctx, notification.SystemMessage{Message: e.Message}); err != nil {
			return err
		}
		logger.InfoContext(ctx, "processed webhook", xslog.EventType(e.GetType()))
	}

	return nil
}

// Sign returns the signature a sender attaches to body.
// algorithm: base64(HMAC-SHA256(timestamp + body, client_secret))
func Sign(secret string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *Processor) verifySignature(body []byte, timestamp, signature string) bool {
	expected := Sign(p.clientSecret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (p *Processor) isTimestampValid(timestampStr string) bool {
	var timestampMs int64
	if _, err := fmt.Sscanf(timestampStr, "%d", &timestampMs); err != nil {
		return false
	}

	webhookTime := time.UnixMilli(timestampMs)
	return p.now().Sub(webhookTime) <= maxWebhookAge
}
