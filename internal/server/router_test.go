package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	go_json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"nhooyr.io/websocket"

	"github.com/garrettladley/notisync/internal/client/realtime"
	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/server/handler"
	"github.com/garrettladley/notisync/internal/service/inbox"
	"github.com/garrettladley/notisync/internal/service/token"
	"github.com/garrettladley/notisync/internal/service/webhook"
	"github.com/garrettladley/notisync/internal/storage"
)

const (
	testJWTSecret     = "jwt-secret"
	testWebhookSecret = "webhook-secret"
)

type testServer struct {
	*httptest.Server
	inbox  *inbox.Service
	tokens *token.JWT
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := storage.NewMemoryNotificationStore()
	broker := storage.NewMemoryBroker()
	limiter := storage.NewMemoryBackend(1000, 1000)
	t.Cleanup(func() {
		_ = broker.Close()
		_ = limiter.Close()
	})

	svc := inbox.NewService(store, broker)
	tokens := token.NewJWT(testJWTSecret)

	router := NewRouter(Deps{
		Inbox:     svc,
		Webhooks:  webhook.NewProcessor(testWebhookSecret, svc),
		Tokens:    tokens,
		Limiter:   limiter,
		Health:    []handler.Pinger{store, limiter},
		Heartbeat: time.Minute,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, inbox: svc, tokens: tokens}
}

func (s *testServer) bearer(t *testing.T, userID string) string {
	t.Helper()
	raw, err := s.tokens.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return raw
}

func (s *testServer) do(t *testing.T, method, path, userID, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.bearer(t, userID))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (s *testServer) seed(t *testing.T, userID string, ids ...string) {
	t.Helper()
	for i, id := range ids {
		_, err := s.inbox.Create(context.Background(), userID, notification.Notification{
			ID:        id,
			Type:      "comment",
			Title:     "title " + id,
			CreatedAt: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
}

func TestRouter_RequiresBearer(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/api/notifications/unread-count", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	resp, _ = s.do(t, http.MethodGet, "/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestRouter_REST(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.seed(t, "u1", "a", "b", "c", "d")
	s.seed(t, "u2", "z")

	resp, body := s.do(t, http.MethodGet, "/api/notifications?page=0&size=3", "u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d: %s", resp.StatusCode, body)
	}
	var page notification.Page
	if err := go_json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.TotalElements != 4 || page.TotalPages != 2 || len(page.Content) != 3 || page.Content[0].ID != "d" {
		t.Errorf("page = %+v", page)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "unread count", method: http.MethodGet, path: "/api/notifications/unread-count", wantStatus: http.StatusOK, wantBody: `{"count":4}`},
		{name: "mark read", method: http.MethodPost, path: "/api/notifications/a/read", wantStatus: http.StatusNoContent},
		{name: "mark read of another user", method: http.MethodPost, path: "/api/notifications/z/read", wantStatus: http.StatusNotFound},
		{name: "batch read", method: http.MethodPost, path: "/api/notifications/batch-read", body: `{"notificationIds":["a","b"]}`, wantStatus: http.StatusOK, wantBody: `{"updated":1}`},
		{name: "batch read empty", method: http.MethodPost, path: "/api/notifications/batch-read", body: `{"notificationIds":[]}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "batch read malformed", method: http.MethodPost, path: "/api/notifications/batch-read", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "delete", method: http.MethodDelete, path: "/api/notifications/c", wantStatus: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: "/api/notifications/c", wantStatus: http.StatusNotFound},
		{name: "read all", method: http.MethodPost, path: "/api/notifications/read-all", wantStatus: http.StatusOK, wantBody: `{"updated":1}`},
		{name: "unread count after", method: http.MethodGet, path: "/api/notifications/unread-count", wantStatus: http.StatusOK, wantBody: `{"count":0}`},
		{name: "bad page", method: http.MethodGet, path: "/api/notifications?page=x", wantStatus: http.StatusBadRequest},
	}

	// steps build on each other
	for _, tt := range tests {
		resp, body := s.do(t, tt.method, tt.path, "u1", tt.body)
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d (%s)", tt.name, resp.StatusCode, tt.wantStatus, body)
			continue
		}
		if tt.wantBody != "" {
			if diff := cmp.Diff(tt.wantBody, strings.TrimSpace(string(body))); diff != "" {
				t.Errorf("%s: body mismatch (-want +got):\n%s", tt.name, diff)
			}
		}
	}

	resp, body = s.do(t, http.MethodGet, "/api/notifications/recent?size=2", "u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recent status = %d", resp.StatusCode)
	}
	var recent []notification.Notification
	if err := go_json.Unmarshal(body, &recent); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	if got := []string{recent[0].ID, recent[1].ID}; !cmp.Equal(got, []string{"d", "b"}) {
		t.Errorf("recent ids = %v, want [d b]", got)
	}

	resp, body = s.do(t, http.MethodGet, "/api/notifications/stats", "u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	var stats notification.Stats
	if err := go_json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 3 || stats.Unread != 0 {
		t.Errorf("stats = %+v, want total 3 unread 0", stats)
	}
}

func TestRouter_Webhook(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	body := `{"type":"notification","userId":"u1","notification":{"id":"w1","type":"deploy","title":"shipped","priority":"HIGH"}}`
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	send := func(signature string) int {
		req, _ := http.NewRequest(http.MethodPost, s.URL+"/webhooks/notifications", strings.NewReader(body))
		req.Header.Set(handler.HeaderSignatureTimestamp, ts)
		req.Header.Set(handler.HeaderSignature, signature)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST webhook error = %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := send("bogus"); got != http.StatusUnauthorized {
		t.Errorf("bad signature status = %d, want 401", got)
	}
	if got := send(webhook.Sign(testWebhookSecret, ts, []byte(body))); got != http.StatusOK {
		t.Fatalf("signed status = %d, want 200", got)
	}

	count, err := s.inbox.UnreadCount(context.Background(), "u1")
	if err != nil || count != 1 {
		t.Errorf("UnreadCount() = %d, %v, want 1", count, err)
	}
}

func readFrame(t *testing.T, ctx context.Context, c *websocket.Conn) realtime.Frame {
	t.Helper()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	f, err := realtime.DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame(%s) error = %v", data, err)
	}
	return f
}

func writeFrame(t *testing.T, ctx context.Context, c *websocket.Conn, f realtime.Frame) {
	t.Helper()
	data, _ := realtime.EncodeFrame(f)
	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestRouter_WebSocket(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.bearer(t, "u1"))
	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"

	c, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.CloseNow()

	if f := readFrame(t, ctx, c); f.Type != realtime.FrameConnected {
		t.Fatalf("first frame = %s, want connected", f.Type)
	}

	writeFrame(t, ctx, c, realtime.Frame{Type: realtime.FrameSubscribe, Topic: notification.TopicUnreadCount})
	writeFrame(t, ctx, c, realtime.Frame{Type: realtime.FrameSubscribe, Topic: "bogus"})
	if f := readFrame(t, ctx, c); f.Type != realtime.FrameError {
		t.Fatalf("frame after bad subscribe = %s, want error", f.Type)
	}

	// the pong proves both subscribes were processed
	writeFrame(t, ctx, c, realtime.Frame{Type: realtime.FramePing})
	if f := readFrame(t, ctx, c); f.Type != realtime.FramePong {
		t.Fatalf("frame after ping = %s, want pong", f.Type)
	}

	s.seed(t, "u1", "a")

	f := readFrame(t, ctx, c)
	want := realtime.Frame{Type: realtime.FrameMessage, Topic: notification.TopicUnreadCount, Payload: []byte(`{"unreadCount":1}`)}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("message frame mismatch (-want +got):\n%s", diff)
	}
}

func TestRouter_WebSocketQueryToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?access_token=" + s.bearer(t, "u1")
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.CloseNow()

	if f := readFrame(t, ctx, c); f.Type != realtime.FrameConnected {
		t.Fatalf("first frame = %s, want connected", f.Type)
	}

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("Dial() without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Dial() without token response = %v, want 401", resp)
	}
}
