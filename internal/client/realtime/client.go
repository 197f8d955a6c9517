package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"nhooyr.io/websocket"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/xhttp"
	"github.com/garrettladley/notisync/internal/xslog"
)

const (
	defaultHeartbeat   = 10 * time.Second
	defaultPingTimeout = 5 * time.Second
	defaultWriteWait   = 5 * time.Second
	maxFrameSize       = 1 << 20
)

var ErrClosed = errors.New("realtime: connection closed")

type Client struct {
	url         string
	tokenSource oauth2.TokenSource
	cfg         clientConfig
}

var _ Dialer = (*Client)(nil)

func New(url string, tokenSource oauth2.TokenSource, opts ...Option) *Client {
	cfg := clientConfig{
		httpClient:  http.DefaultClient,
		heartbeat:   defaultHeartbeat,
		pingTimeout: defaultPingTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		url:         url,
		tokenSource: tokenSource,
		cfg:         cfg,
	}
}

// Dial opens a websocket to the server. identity is sent as the client
// session id so the server can tell connections of the same user apart.
func (c *Client) Dial(ctx context.Context, identity string, h Handler) (Conn, error) {
	header := make(http.Header)
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("getting token: %w", err)
		}
		xhttp.SetBearer(header, token.AccessToken)
	}
	xhttp.SetVersionHeaders(header)
	if identity != "" {
		header.Set(xhttp.XClientSessionID, identity)
	}

	ws, resp, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		HTTPClient: c.cfg.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: status %d: %w", c.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", c.url, err)
	}
	ws.SetReadLimit(maxFrameSize)

	connCtx, cancel := context.WithCancel(context.Background())
	conn := &wsConn{
		ws:      ws,
		handler: h,
		ctx:     connCtx,
		cancel:  cancel,
		logger:  c.cfg.logger.With(xslog.Identity(identity)),
	}

	go conn.readLoop()
	if c.cfg.heartbeat > 0 {
		go conn.heartbeatLoop(c.cfg.heartbeat, c.cfg.pingTimeout)
	}

	return conn, nil
}

type wsConn struct {
	ws      *websocket.Conn
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger

	closing atomic.Bool
	closed  atomic.Bool
}

var _ Conn = (*wsConn)(nil)

func (c *wsConn) Subscribe(ctx context.Context, topic notification.Topic) error {
	return c.write(ctx, Frame{Type: FrameSubscribe, Topic: topic})
}

func (c *wsConn) Unsubscribe(ctx context.Context, topic notification.Topic) error {
	return c.write(ctx, Frame{Type: FrameUnsubscribe, Topic: topic})
}

func (c *wsConn) Close() error {
	c.closing.Store(true)
	c.shutdown(nil)
	return nil
}

func (c *wsConn) write(ctx context.Context, f Frame) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	data, err := EncodeFrame(f)
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", f.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultWriteWait)
	defer cancel()

	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing %s frame: %w", f.Type, err)
	}
	return nil
}

func (c *wsConn) readLoop() {
	for {
		typ, data, err := c.ws.Read(c.ctx)
		if err != nil {
			c.shutdown(err)
			return
		}
		if typ != websocket.MessageText {
			c.logger.Debug("ignoring non-text frame")
			continue
		}
		c.handler.HandleFrame(data)
	}
}

func (c *wsConn) heartbeatLoop(interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, timeout)
			err := c.ws.Ping(ctx)
			cancel()
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Warn("heartbeat failed, closing connection", xslog.Error(err))
				c.shutdown(fmt.Errorf("heartbeat: %w", err))
				return
			}
		}
	}
}

// shutdown tears the connection down once. The handler hears about it only
// when the drop was not asked for by Close.
func (c *wsConn) shutdown(cause error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	if c.closing.Load() {
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
		c.cancel()
		return
	}

	c.cancel()
	if cause == nil {
		cause = ErrClosed
	}
	c.handler.HandleClose(cause)
	_ = c.ws.Close(websocket.StatusGoingAway, "")
}
