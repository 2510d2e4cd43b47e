package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shiftsync/internal/config"
	"shiftsync/internal/services"
)

const userAgent = "shiftsync/0.1"

// ErrSessionRejected means the roster host refused the session cookie.
var ErrSessionRejected = errors.New("roster session rejected")

// Fetcher returns the raw calendar page for a site. Callers close the body.
type Fetcher interface {
	Fetch(ctx context.Context, site config.Site) (io.ReadCloser, error)
}

// NewFetcher builds the fetcher selected by cfg.Source.Kind.
func NewFetcher(cfg *config.Config) (Fetcher, error) {
	switch cfg.Source.Kind {
	case config.SourceDir:
		return DirFetcher{Dir: cfg.Source.Dir}, nil
	case config.SourceHTTP:
		return NewHTTPFetcher(cfg.Source.BaseURL, cfg.Source.Cookie, cfg.SourceTimeout())
	default:
		return nil, services.Wrap(services.ErrConfiguration, "source", "new fetcher", fmt.Sprintf("unknown source kind %q", cfg.Source.Kind), nil)
	}
}

// DirFetcher reads pages previously saved to a directory.
type DirFetcher struct {
	Dir string
}

func (f DirFetcher) Fetch(ctx context.Context, site config.Site) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(f.Dir, filepath.Clean("/" + site.Path))
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "source", "read page", site.Name, err)
		}
		return nil, services.Wrap(services.ErrTransient, "source", "read page", site.Name, err)
	}
	return file, nil
}

// HTTPFetcher requests pages from the roster host.
type HTTPFetcher struct {
	base   *url.URL
	cookie string
	client *http.Client
}

// NewHTTPFetcher validates baseURL and builds a fetcher.
func NewHTTPFetcher(baseURL, cookie string, timeout time.Duration) (*HTTPFetcher, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "source", "new http fetcher", fmt.Sprintf("invalid base url %q", baseURL), err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		base:   parsed,
		cookie: strings.TrimSpace(cookie),
		client: &http.Client{Timeout: timeout},
	}, nil
}

// URL returns the address requested for site.
func (f *HTTPFetcher) URL(site config.Site) string {
	return f.base.JoinPath(site.Path).String()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, site config.Site) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(site), nil)
	if err != nil {
		return nil, fmt.Errorf("build roster request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "source", "fetch page", site.Name, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp.Body)
		return nil, fmt.Errorf("%w: %s returned %d", ErrSessionRejected, site.Name, resp.StatusCode)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		return nil, services.Wrap(services.ErrTransient, "source", "fetch page",
			fmt.Sprintf("%s returned %d: %s", site.Name, resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	return resp.Body, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
