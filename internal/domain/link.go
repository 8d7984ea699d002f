package domain

import "time"

// Link represents a bookmark saved by a user together with its preview.
type Link struct {
	// URL is the unique identifier for the link (and the primary key conceptually).
	URL string `json:"url"`

	// Title comes from the extracted preview (og:title or the document <title>).
	Title string `json:"title"`

	// Description comes from og:description or the site integration's API.
	Description string `json:"description"`

	// UserID is the Telegram User ID of the user who saved the link.
	UserID int64 `json:"user_id"`

	// Timestamp indicates when the link was saved.
	Timestamp time.Time `json:"timestamp"`

	// Tags is an optional list of tags for categorizing the link.
	Tags []string `json:"tags,omitempty"`

	// Read indicates whether the user has marked the link as read.
	Read bool `json:"read"`

	// PreviewImageURL is the representative image of the page, if any.
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

// NewLink builds a bookmark for userID from a resolved preview.
// Absent preview fields are stored as empty strings.
func NewLink(userID int64, url string, md Metadata, now time.Time) Link {
	return Link{
		URL:             url,
		Title:           md.TitleOr(url),
		Description:     deref(md.Description),
		UserID:          userID,
		Timestamp:       now,
		PreviewImageURL: deref(md.ImageURL),
	}
}
