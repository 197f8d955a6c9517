// Package github looks up published releases for the upgrade command.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	go_json "github.com/goccy/go-json"

	"github.com/garrettladley/notisync/internal/xhttp"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 10 * time.Second
	acceptHeader   = "application/vnd.github+json"
)

// ErrNoRelease is returned when the repository has never published a release.
var ErrNoRelease = errors.New("no release published")

type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Releases reads the release feed of one repository.
type Releases struct {
	httpClient *http.Client
	baseURL    string
	owner      string
	repo       string
}

type Option func(*Releases)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Releases) { r.httpClient = c }
}

func WithBaseURL(url string) Option {
	return func(r *Releases) { r.baseURL = url }
}

func NewReleases(owner, repo string, opts ...Option) *Releases {
	r := &Releases{
		httpClient: xhttp.NewHTTPClient(xhttp.WithTimeout(defaultTimeout)),
		baseURL:    defaultBaseURL,
		owner:      owner,
		repo:       repo,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Releases) Latest(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.baseURL, r.owner, r.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(xhttp.Accept, acceptHeader)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s/%s: %w", r.owner, r.repo, ErrNoRelease)
	default:
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var release Release
	if err := go_json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("%s/%s: %w", r.owner, r.repo, ErrNoRelease)
	}

	return &release, nil
}
