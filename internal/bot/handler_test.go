package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetpreview/internal/domain"
	"jetpreview/internal/storage"
)

type memoryRepo struct {
	links   map[string]domain.Link
	saveErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{links: make(map[string]domain.Link)}
}

func repoKey(userID int64, url string) string {
	return fmt.Sprintf("%d|%s", userID, url)
}

func (r *memoryRepo) SaveLink(_ context.Context, link domain.Link) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.links[repoKey(link.UserID, link.URL)] = link
	return nil
}

func (r *memoryRepo) GetLink(_ context.Context, userID int64, url string) (domain.Link, error) {
	link, ok := r.links[repoKey(userID, url)]
	if !ok {
		return domain.Link{}, storage.ErrNotFound
	}
	return link, nil
}

func (r *memoryRepo) GetLinksByUser(_ context.Context, userID int64) ([]domain.Link, error) {
	var links []domain.Link
	for _, l := range r.links {
		if l.UserID == userID {
			links = append(links, l)
		}
	}
	return links, nil
}

func (r *memoryRepo) DeleteLink(_ context.Context, userID int64, url string) error {
	delete(r.links, repoKey(userID, url))
	return nil
}

type stubPreviewer map[string]domain.Metadata

func (s stubPreviewer) Preview(_ context.Context, url string) domain.Metadata {
	return s[url]
}

func newTestHandler(repo storage.Repository, previews stubPreviewer) *Handler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Handler{
		repo:      repo,
		previewer: previews,
		log:       logger,
		now:       func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestExtractURLs(t *testing.T) {
	text := "look at https://example.com/a, and (https://youtu.be/dQw4w9WgXcQ). again https://example.com/a!"
	assert.Equal(t, []string{"https://example.com/a", "https://youtu.be/dQw4w9WgXcQ"}, extractURLs(text))
	assert.Empty(t, extractURLs("no links here, ftp://example.com either"))
}

func TestSaveReply(t *testing.T) {
	repo := newMemoryRepo()
	h := newTestHandler(repo, stubPreviewer{
		"https://example.com": {Title: domain.StringPtr("Example"), Description: domain.StringPtr("Desc")},
	})

	reply := h.saveReply(context.Background(), 7, "https://example.com https://unknown.test/page")
	assert.Equal(t, "Saved: Example\nSaved: https://unknown.test/page", reply)

	link, err := repo.GetLink(context.Background(), 7, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Example", link.Title)
	assert.Equal(t, "Desc", link.Description)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), link.Timestamp)

	// Empty preview still saves the bookmark under its URL
	link, err = repo.GetLink(context.Background(), 7, "https://unknown.test/page")
	require.NoError(t, err)
	assert.Equal(t, "https://unknown.test/page", link.Title)
}

func TestSaveReply_NoURLs(t *testing.T) {
	h := newTestHandler(newMemoryRepo(), stubPreviewer{})
	assert.Contains(t, h.saveReply(context.Background(), 1, "hello"), "Send me a link")
}

func TestSaveReply_StorageFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.saveErr = errors.New("disk full")
	h := newTestHandler(repo, stubPreviewer{})

	assert.Equal(t, "Could not save https://example.com", h.saveReply(context.Background(), 1, "https://example.com"))
}

func TestDeleteReply(t *testing.T) {
	repo := newMemoryRepo()
	h := newTestHandler(repo, stubPreviewer{})
	ctx := context.Background()
	require.NoError(t, repo.SaveLink(ctx, domain.Link{UserID: 3, URL: "https://example.com", Title: "Example"}))

	assert.Equal(t, "Usage: /delete <url>", h.deleteReply(ctx, 3, "/delete"))
	assert.Equal(t, "No bookmark for https://other.test", h.deleteReply(ctx, 3, "/delete https://other.test"))
	assert.Equal(t, "Deleted https://example.com", h.deleteReply(ctx, 3, "/delete  https://example.com "))

	_, err := repo.GetLink(ctx, 3, "https://example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListReply(t *testing.T) {
	repo := newMemoryRepo()
	h := newTestHandler(repo, stubPreviewer{})
	ctx := context.Background()

	assert.Equal(t, "You have no saved links yet.", h.listReply(ctx, 9))

	require.NoError(t, repo.SaveLink(ctx, domain.Link{UserID: 9, URL: "https://example.com", Title: "Example", Description: "About"}))
	assert.Equal(t, "Your bookmarks:\n1. Example\n   https://example.com\n   About", h.listReply(ctx, 9))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abc", 2))
	assert.Equal(t, "한국…", truncate("한국어", 2))
}
