package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// PageFetcher returns the raw HTML of a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchOptions configures HTTPFetcher.
type FetchOptions struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	// MaxBodyBytes caps how much of the body is read.
	MaxBodyBytes int64
}

// HTTPFetcher is the plain GET PageFetcher.
type HTTPFetcher struct {
	client *http.Client
	opts   FetchOptions
	log    logrus.FieldLogger
}

// NewHTTPFetcher creates a fetcher. Zero options fall back to a 10s timeout
// and a 2 MiB body limit.
func NewHTTPFetcher(opts FetchOptions, logger logrus.FieldLogger) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 << 20
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		log:    logger.WithField("component", "fetcher"),
	}
}

// Fetch issues a GET for url and returns the (possibly truncated) body.
// Non-2xx responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	if f.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", url, err)
	}

	f.log.WithFields(logrus.Fields{
		"url":   url,
		"bytes": len(body),
	}).Debug("Page fetched")
	return string(body), nil
}
