package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetpreview/internal/domain"
)

// setupTestDB opens a BadgerDB in a temporary directory and returns a
// repository over it. The database is closed when the test finishes.
func setupTestDB(t *testing.T) *BadgerRepository {
	t.Helper()

	testLogger := logrus.New()
	testLogger.SetOutput(os.Stderr)        // Send logs to stderr during tests
	testLogger.SetLevel(logrus.ErrorLevel) // Only show errors by default

	db, err := OpenBadger(t.TempDir(), testLogger)
	require.NoError(t, err, "Failed to open test BadgerDB")
	t.Cleanup(func() {
		assert.NoError(t, db.Close(), "Failed to close test BadgerDB")
	})

	return NewBadgerRepository(db, testLogger)
}

// TestBadgerRepository_SaveAndGetLinks tests saving and retrieving links.
func TestBadgerRepository_SaveAndGetLinks(t *testing.T) {
	repo := setupTestDB(t)

	ctx := context.Background()
	userID1 := int64(123)
	userID2 := int64(456)

	link1 := domain.Link{
		URL:         "https://example.com/page1",
		Title:       "Example Page 1",
		Description: "Desc 1",
		UserID:      userID1,
		Timestamp:   time.Now().Add(-time.Hour), // Older timestamp
	}
	link2 := domain.Link{
		URL:         "https://example.com/page2",
		Title:       "Example Page 2",
		Description: "Desc 2",
		UserID:      userID1,
		Timestamp:   time.Now(), // Newer timestamp
	}
	link3 := domain.Link{
		URL:         "https://anothersite.net",
		Title:       "Another Site",
		Description: "Desc 3",
		UserID:      userID2,
		Timestamp:   time.Now(),
	}

	// --- Test SaveLink ---
	err := repo.SaveLink(ctx, link1)
	require.NoError(t, err, "Failed to save link1")
	err = repo.SaveLink(ctx, link2)
	require.NoError(t, err, "Failed to save link2")
	err = repo.SaveLink(ctx, link3)
	require.NoError(t, err, "Failed to save link3")

	// --- Test GetLinksByUser for userID1 ---
	linksUser1, err := repo.GetLinksByUser(ctx, userID1)
	require.NoError(t, err, "Failed to get links for user 1")
	require.Len(t, linksUser1, 2, "Expected 2 links for user 1")

	// Verify content and order (newest first due to sorting in GetLinksByUser)
	assert.Equal(t, link2.URL, linksUser1[0].URL, "First link for user 1 should be link2 (newest)")
	assert.Equal(t, link2.Title, linksUser1[0].Title)
	assert.Equal(t, link1.URL, linksUser1[1].URL, "Second link for user 1 should be link1 (older)")
	assert.Equal(t, link1.Title, linksUser1[1].Title)

	// --- Test GetLinksByUser for userID2 ---
	linksUser2, err := repo.GetLinksByUser(ctx, userID2)
	require.NoError(t, err, "Failed to get links for user 2")
	require.Len(t, linksUser2, 1, "Expected 1 link for user 2")
	assert.Equal(t, link3.URL, linksUser2[0].URL)
	assert.Equal(t, link3.Title, linksUser2[0].Title)

	// --- Test GetLinksByUser for non-existent user ---
	linksUser3, err := repo.GetLinksByUser(ctx, int64(999))
	require.NoError(t, err, "Getting links for non-existent user should not error")
	assert.Empty(t, linksUser3, "Expected no links for non-existent user")

	// --- Test Overwriting a link (SaveLink should update) ---
	updatedLink1 := domain.Link{
		URL:         link1.URL, // Same URL
		Title:       "Updated Title 1",
		Description: "Updated Desc 1",
		UserID:      userID1,
		Timestamp:   time.Now().Add(time.Minute), // Make it newest
	}
	err = repo.SaveLink(ctx, updatedLink1)
	require.NoError(t, err, "Failed to update link1")

	linksUser1AfterUpdate, err := repo.GetLinksByUser(ctx, userID1)
	require.NoError(t, err, "Failed to get links for user 1 after update")
	require.Len(t, linksUser1AfterUpdate, 2, "Expected 2 links for user 1 after update")

	// Check if the updated link is now first and has new title
	assert.Equal(t, updatedLink1.URL, linksUser1AfterUpdate[0].URL)
	assert.Equal(t, updatedLink1.Title, linksUser1AfterUpdate[0].Title)
	assert.Equal(t, link2.URL, linksUser1AfterUpdate[1].URL) // link2 should be second now
}

// TestBadgerRepository_DeleteLink tests deleting links.
func TestBadgerRepository_DeleteLink(t *testing.T) {
	repo := setupTestDB(t)

	ctx := context.Background()
	userID := int64(789)
	linkURLToDelete := "https://example.com/to_delete"
	linkURLToKeep := "https://example.com/to_keep"

	linkToDelete := domain.Link{URL: linkURLToDelete, Title: "Delete Me", UserID: userID}
	linkToKeep := domain.Link{URL: linkURLToKeep, Title: "Keep Me", UserID: userID}

	// Save both links
	err := repo.SaveLink(ctx, linkToDelete)
	require.NoError(t, err)
	err = repo.SaveLink(ctx, linkToKeep)
	require.NoError(t, err)

	// Verify both exist initially
	linksBeforeDelete, err := repo.GetLinksByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, linksBeforeDelete, 2)

	// --- Test DeleteLink ---
	err = repo.DeleteLink(ctx, userID, linkURLToDelete)
	require.NoError(t, err, "Failed to delete link")

	// Verify the link is gone
	linksAfterDelete, err := repo.GetLinksByUser(ctx, userID)
	require.NoError(t, err, "Failed to get links after delete")
	require.Len(t, linksAfterDelete, 1, "Expected 1 link after delete")
	assert.Equal(t, linkURLToKeep, linksAfterDelete[0].URL, "The remaining link should be the one to keep")

	// --- Test Deleting a non-existent link ---
	err = repo.DeleteLink(ctx, userID, "https://example.com/does_not_exist")
	assert.NoError(t, err, "Deleting a non-existent link should not return an error")

	// Verify the list hasn't changed
	linksAfterNonExistentDelete, err := repo.GetLinksByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, linksAfterNonExistentDelete, 1, "Link count should still be 1 after deleting non-existent link")

	// --- Test Deleting the same link again ---
	err = repo.DeleteLink(ctx, userID, linkURLToDelete)
	assert.NoError(t, err, "Deleting an already deleted link should not return an error")

	// Verify the list hasn't changed
	linksAfterDeleteAgain, err := repo.GetLinksByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, linksAfterDeleteAgain, 1, "Link count should still be 1 after deleting again")
}

// TestBadgerRepository_GetLink tests single link lookups and the preview fields.
func TestBadgerRepository_GetLink(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	md := domain.Metadata{
		Title:    domain.StringPtr("Example"),
		ImageURL: domain.StringPtr("https://example.com/og.png"),
	}
	link := domain.NewLink(42, "https://example.com", md, time.Now())
	require.NoError(t, repo.SaveLink(ctx, link))

	got, err := repo.GetLink(ctx, 42, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Example", got.Title)
	assert.Equal(t, "https://example.com/og.png", got.PreviewImageURL)
	assert.Empty(t, got.Description)

	_, err = repo.GetLink(ctx, 42, "https://example.com/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Same URL saved by another user is a separate bookmark
	_, err = repo.GetLink(ctx, 43, "https://example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestBadgerRepository_SharedWithPreviewCache checks that preview cache keys
// do not leak into user listings.
func TestBadgerRepository_SharedWithPreviewCache(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	err := repo.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("preview:https://example.com"), []byte(`{"title":"x"}`))
	})
	require.NoError(t, err)
	require.NoError(t, repo.SaveLink(ctx, domain.Link{URL: "https://example.com", UserID: 1}))

	links, err := repo.GetLinksByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

// TestRunGC_StopsOnCancel checks that the GC routine exits with its context.
func TestRunGC_StopsOnCancel(t *testing.T) {
	repo := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunGC(ctx, repo.db, time.Millisecond, logrus.New())
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunGC did not stop after cancel")
	}
}
