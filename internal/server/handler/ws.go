package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/garrettladley/notisync/internal/client/realtime"
	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/storage"
	"github.com/garrettladley/notisync/internal/xcontext"
	"github.com/garrettladley/notisync/internal/xerrors"
	"github.com/garrettladley/notisync/internal/xslog"
)

const (
	DefaultHeartbeat = 30 * time.Second
	wsWriteTimeout   = 5 * time.Second
	wsReadLimit      = 64 << 10
)

// Live streams the events addressed to a user.
type Live interface {
	Subscribe(ctx context.Context, userID string) (<-chan storage.Event, func(), error)
}

type WebSocket struct {
	live      Live
	heartbeat time.Duration
}

func NewWebSocket(live Live, heartbeat time.Duration) *WebSocket {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &WebSocket{live: live, heartbeat: heartbeat}
}

// HandleWS handles GET /ws. Each connection receives message frames only for
// the topics it has subscribed to.
func (h *WebSocket) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID, _ := xcontext.GetSessionID(ctx)
	logger = logger.With(xslog.SessionID(sessionID))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsubscribe, err := h.live.Subscribe(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to subscribe to live events", xslog.Error(err))
		xerrors.WriteError(ctx, w, xerrors.ServiceUnavailable(xerrors.WithMessage("failed to subscribe"), xerrors.WithCause(err)))
		return
	}
	defer unsubscribe()

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.WarnContext(ctx, "websocket accept failed", xslog.Error(err))
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(wsReadLimit)

	s := &wsSession{conn: c, topics: make(map[notification.Topic]struct{})}

	if err := s.write(ctx, realtime.Frame{Type: realtime.FrameConnected}); err != nil {
		logger.WarnContext(ctx, "failed to send connected frame", xslog.Error(err))
		return
	}
	logger.InfoContext(ctx, "websocket connection established")

	go func() {
		defer cancel()
		s.readLoop(ctx, logger)
	}()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			// the request context ends only when the server shuts down
			if r.Context().Err() != nil {
				logger.InfoContext(ctx, "websocket closing for shutdown")
				_ = c.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			logger.InfoContext(ctx, "websocket connection closed")
			return

		case e, ok := <-events:
			if !ok {
				_ = c.Close(websocket.StatusTryAgainLater, "event stream closed")
				return
			}
			if !s.subscribed(e.Topic) {
				continue
			}
			frame := realtime.Frame{Type: realtime.FrameMessage, Topic: e.Topic, Payload: e.Payload}
			if err := s.write(ctx, frame); err != nil {
				logger.WarnContext(ctx, "failed to send message frame", xslog.Error(err), xslog.Topic(e.Topic.String()))
				return
			}

		case <-heartbeat.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := c.Ping(pingCtx)
			pingCancel()
			if err != nil {
				logger.InfoContext(ctx, "websocket heartbeat failed", xslog.Error(err))
				return
			}
		}
	}
}

type wsSession struct {
	conn *websocket.Conn

	mu     sync.RWMutex
	topics map[notification.Topic]struct{}
}

func (s *wsSession) subscribed(topic notification.Topic) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.topics[topic]
	return ok
}

func (s *wsSession) readLoop(ctx context.Context, logger *slog.Logger) {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			var ce websocket.CloseError
			if !errors.As(err, &ce) && ctx.Err() == nil {
				logger.DebugContext(ctx, "websocket read failed", xslog.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			_ = s.writeError(ctx, "expected a text frame")
			continue
		}

		f, err := realtime.DecodeFrame(data)
		if err != nil {
			_ = s.writeError(ctx, "malformed frame")
			continue
		}

		switch f.Type {
		case realtime.FrameSubscribe:
			if !f.Topic.Valid() {
				_ = s.writeError(ctx, "unknown topic "+string(f.Topic))
				continue
			}
			s.mu.Lock()
			s.topics[f.Topic] = struct{}{}
			s.mu.Unlock()
			logger.DebugContext(ctx, "topic subscribed", xslog.Topic(f.Topic.String()))
		case realtime.FrameUnsubscribe:
			s.mu.Lock()
			delete(s.topics, f.Topic)
			s.mu.Unlock()
			logger.DebugContext(ctx, "topic unsubscribed", xslog.Topic(f.Topic.String()))
		case realtime.FramePing:
			_ = s.write(ctx, realtime.Frame{Type: realtime.FramePong})
		default:
			_ = s.writeError(ctx, "unknown frame type "+string(f.Type))
		}
	}
}

func (s *wsSession) writeError(ctx context.Context, msg string) error {
	return s.write(ctx, realtime.Frame{Type: realtime.FrameError, Message: msg})
}

func (s *wsSession) write(ctx context.Context, f realtime.Frame) error {
	data, err := realtime.EncodeFrame(f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}
