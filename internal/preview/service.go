// Package preview is the entry point the bot and the HTTP API use to turn a
// URL into preview metadata.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"jetpreview/internal/cache"
	"jetpreview/internal/domain"
	"jetpreview/internal/scraper"
)

// ErrInvalidURL is returned for input that is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid url")

// Service resolves previews through the cache and the scraper.
type Service struct {
	cache   *cache.Cache
	scraper scraper.Scraper
	log     logrus.FieldLogger
}

// NewService creates a Service.
func NewService(c *cache.Cache, s scraper.Scraper, logger logrus.FieldLogger) *Service {
	return &Service{
		cache:   c,
		scraper: s,
		log:     logger.WithField("component", "preview"),
	}
}

// Lookup returns the preview for rawURL, serving it from the cache when
// possible.
func (s *Service) Lookup(ctx context.Context, rawURL string) (domain.Metadata, error) {
	target, err := Normalize(rawURL)
	if err != nil {
		return domain.Metadata{}, err
	}
	return s.cache.GetOrCompute(ctx, target, s.scraper.Extract)
}

// Preview is Lookup for callers that must not fail: any error is logged and
// an empty preview returned.
func (s *Service) Preview(ctx context.Context, rawURL string) domain.Metadata {
	md, err := s.Lookup(ctx, rawURL)
	if err != nil {
		s.log.WithError(err).WithField("url", rawURL).Warn("Preview unavailable, continuing without it")
		return domain.Metadata{}
	}
	return md
}

// Normalize trims rawURL and checks that it is an absolute http or https URL.
func Normalize(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return trimmed, nil
}
