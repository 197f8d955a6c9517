package notifications

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/garrettladley/notisync/internal/xhttp"
)

const (
	apiPrefix      = "/api"
	defaultTimeout = 30 * time.Second
)

// Client talks to the notification REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	batchSize  int
}

func New(baseURL string, tokenSource oauth2.TokenSource, opts ...Option) *Client {
	cfg := &clientConfig{
		tokenSource: tokenSource,
		logger:      slog.Default(),
		timeout:     defaultTimeout,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	transport := &authTransport{
		base:        xhttp.NewTransportWithBase(cfg.base),
		tokenSource: cfg.tokenSource,
		sessionID:   cfg.sessionID,
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: transport, Timeout: cfg.timeout},
		logger:     cfg.logger,
		batchSize:  cfg.batchSize,
	}
}

type clientConfig struct {
	tokenSource oauth2.TokenSource
	base        http.RoundTripper
	logger      *slog.Logger
	sessionID   string
	timeout     time.Duration
	batchSize   int
}

type Option func(*clientConfig)

func WithSessionID(sessionID string) Option {
	return func(cfg *clientConfig) { cfg.sessionID = sessionID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) { cfg.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

// WithBaseTransport replaces the underlying round tripper, mostly for tests.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(cfg *clientConfig) { cfg.base = rt }
}

// WithBatchSize caps the number of ids sent in one batch-read request.
func WithBatchSize(n int) Option {
	return func(cfg *clientConfig) {
		if n > 0 {
			cfg.batchSize = n
		}
	}
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, body any, result any) error {
	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := go_json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set(xhttp.ContentType, "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if err := go_json.NewDecoder(bytes.NewReader(data)).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w\nbody: %s", err, string(data))
		}
	}

	return nil
}

type authTransport struct {
	base        http.RoundTripper
	tokenSource oauth2.TokenSource
	sessionID   string
}

var _ http.RoundTripper = (*authTransport)(nil)

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	if t.tokenSource != nil {
		token, err := t.tokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("getting token: %w", err)
		}
		xhttp.SetBearer(req.Header, token.AccessToken)
	}
	xhttp.SetRequestHeaderAcceptJSON(req)
	if t.sessionID != "" {
		xhttp.SetRequestHeaderSessionID(req, t.sessionID)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("round trip: %w", err)
	}
	return resp, nil
}
