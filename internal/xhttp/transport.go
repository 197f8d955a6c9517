package xhttp

import (
	"fmt"
	"net/http"

	"github.com/garrettladley/notisync/internal/version"
)

const userAgentPrefix = "notisync/"

type notisyncTransport struct {
	base http.RoundTripper
}

var _ http.RoundTripper = (*notisyncTransport)(nil)

func (t *notisyncTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	SetVersionHeaders(req.Header)
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform round trip: %w", err)
	}
	return resp, nil
}

// SetVersionHeaders stamps the user agent and client version on h.
func SetVersionHeaders(h http.Header) {
	h.Set("User-Agent", userAgentPrefix+version.Get())
	h.Set(version.Header, version.Get())
}

// NewTransport returns an http.RoundTripper with standard notisync headers.
func NewTransport() http.RoundTripper {
	return NewTransportWithBase(http.DefaultTransport)
}

func NewTransportWithBase(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &notisyncTransport{base: base}
}
