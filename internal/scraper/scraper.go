// Package scraper resolves URLs into preview metadata by dispatching each URL
// to a site-specific extraction strategy.
package scraper

import (
	"context"

	"jetpreview/internal/domain"
)

// Scraper defines the interface for fetching preview metadata from a URL.
type Scraper interface {
	// Extract returns the preview for url. Absent fields are nil; an error
	// means the page content was never observed.
	Extract(ctx context.Context, url string) (domain.Metadata, error)
}

var _ Scraper = (*Dispatcher)(nil)
