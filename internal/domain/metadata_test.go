package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_JSONKeepsAbsentFieldsNull(t *testing.T) {
	md := Metadata{Title: StringPtr("Example")}

	raw, err := json.Marshal(md)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Example","description":null,"image_url":null}`, string(raw))
}

func TestMetadata_TitleOr(t *testing.T) {
	assert.Equal(t, "fallback", Metadata{}.TitleOr("fallback"))
	assert.Equal(t, "fallback", Metadata{Title: StringPtr("")}.TitleOr("fallback"))
	assert.Equal(t, "Title", Metadata{Title: StringPtr("Title")}.TitleOr("fallback"))
}

func TestNewLink(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	md := Metadata{Title: StringPtr("Post"), ImageURL: StringPtr("https://cdn.example.com/a.png")}

	link := NewLink(42, "https://example.com/post", md, now)

	assert.Equal(t, "https://example.com/post", link.URL)
	assert.Equal(t, "Post", link.Title)
	assert.Empty(t, link.Description)
	assert.Equal(t, "https://cdn.example.com/a.png", link.PreviewImageURL)
	assert.Equal(t, int64(42), link.UserID)
	assert.Equal(t, now, link.Timestamp)
	assert.True(t, Metadata{}.IsEmpty())
	assert.False(t, md.IsEmpty())
}
