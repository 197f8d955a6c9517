package webhook

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/garrettladley/notisync/internal/notification"
)

const testSecret = "shh"

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeSink struct {
	created    []string
	broadcasts []string
}

func (f *fakeSink) Create(_ context.Context, userID string, n notification.Notification) (notification.Notification, error) {
	f.created = append(f.created, userID+"/"+n.Title)
	return n, nil
}

func (f *fakeSink) Broadcast(_ context.Context, msg notification.SystemMessage) error {
	f.broadcasts = append(f.broadcasts, msg.Message)
	return nil
}

func signed(body string, at time.Time) ProcessRequest {
	ts := strconv.FormatInt(at.UnixMilli(), 10)
	return ProcessRequest{
		Body:      []byte(body),
		Timestamp: ts,
		Signature: Sign(testSecret, ts, []byte(body)),
	}
}

func TestProcessWebhook(t *testing.T) {
	t.Parallel()

	const notificationBody = `{"type":"notification","userId":"u1","notification":{"type":"comment","title":"hi"}}`

	tests := []struct {
		name           string
		req            ProcessRequest
		wantErr        error
		wantCreated    []string
		wantBroadcasts []string
	}{
		{
			name:        "notification",
			req:         signed(notificationBody, epoch),
			wantCreated: []string{"u1/hi"},
		},
		{
			name:           "system",
			req:            signed(`{"type":"system","message":"maintenance"}`, epoch.Add(-time.Minute)),
			wantBroadcasts: []string{"maintenance"},
		},
		{
			name:    "missing signature",
			req:     ProcessRequest{Body: []byte(notificationBody)},
			wantErr: ErrMissingSignature,
		},
		{
			name: "tampered body",
			req: func() ProcessRequest {
				r := signed(notificationBody, epoch)
				r.Body = []byte(`{"type":"system","message":"pwned"}`)
				return r
			}(),
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "expired",
			req:     signed(notificationBody, epoch.Add(-6*time.Minute)),
			wantErr: ErrTimestampExpired,
		},
		{
			name:    "unknown type",
			req:     signed(`{"type":"workout.updated"}`, epoch),
			wantErr: ErrUnknownEventType,
		},
		{
			name:    "notification without user",
			req:     signed(`{"type":"notification","notification":{"title":"x"}}`, epoch),
			wantErr: notification.ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &fakeSink{}
			p := NewProcessor(testSecret, sink)
			p.now = func() time.Time { return epoch }

			err := p.ProcessWebhook(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ProcessWebhook() error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.wantCreated, sink.created); diff != "" {
				t.Errorf("created mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantBroadcasts, sink.broadcasts); diff != "" {
				t.Errorf("broadcasts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
