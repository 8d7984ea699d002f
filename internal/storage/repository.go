package storage

import (
	"context"
	"errors"

	"jetpreview/internal/domain"
)

// ErrNotFound is returned when a requested link does not exist.
var ErrNotFound = errors.New("link not found")

// Repository defines the bookmark storage operations.
type Repository interface {
	// SaveLink stores a new link or replaces an existing one.
	// The combination of UserID and link.URL is unique.
	SaveLink(ctx context.Context, link domain.Link) error

	// GetLink returns one link, or ErrNotFound.
	GetLink(ctx context.Context, userID int64, linkURL string) (domain.Link, error)

	// GetLinksByUser retrieves all links saved by a user, newest first.
	GetLinksByUser(ctx context.Context, userID int64) ([]domain.Link, error)

	// DeleteLink removes a specific link for a given user.
	DeleteLink(ctx context.Context, userID int64, linkURL string) error
}
