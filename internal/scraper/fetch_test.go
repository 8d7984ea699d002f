package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Write([]byte("<html><head><title>Example</title></head></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetchOptions{UserAgent: "jetpreview-test", AcceptLanguage: "ko-KR"}, testLogger())
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "<title>Example</title>")
	assert.Equal(t, "jetpreview-test", gotUA)
	assert.Equal(t, "ko-KR", gotLang)
}

func TestHTTPFetcher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetchOptions{}, testLogger())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcher_LimitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetchOptions{MaxBodyBytes: 10}, testLogger())
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 10)
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(done)

	f := NewHTTPFetcher(FetchOptions{Timeout: 50 * time.Millisecond}, testLogger())
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	f := NewHTTPFetcher(FetchOptions{}, testLogger())
	_, err := f.Fetch(context.Background(), "://bad")
	assert.Error(t, err)
}
