package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"jetpreview/internal/domain"
)

// DefaultYouTubeAPIURL is the YouTube Data API v3 base URL.
const DefaultYouTubeAPIURL = "https://www.googleapis.com/youtube/v3"

// thumbnailPreference lists thumbnail keys from highest to lowest resolution.
var thumbnailPreference = []string{"maxres", "standard", "high", "medium", "default"}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTubeClient reads video metadata from the YouTube Data API.
type YouTubeClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     logrus.FieldLogger
}

// NewYouTubeClient creates a client for baseURL (DefaultYouTubeAPIURL when empty).
func NewYouTubeClient(baseURL, apiKey string, timeout time.Duration, logger logrus.FieldLogger) *YouTubeClient {
	if baseURL == "" {
		baseURL = DefaultYouTubeAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YouTubeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     logger.WithField("component", "youtube"),
	}
}

type videoListResponse struct {
	Items []struct {
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Thumbnails  map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
			Localized struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			} `json:"localized"`
		} `json:"snippet"`
	} `json:"items"`
}

// Metadata resolves a YouTube URL. URLs without a recognizable video id,
// unknown videos and an unreachable API yield empty metadata without error.
func (c *YouTubeClient) Metadata(ctx context.Context, rawURL string) (domain.Metadata, error) {
	id, ok := VideoID(rawURL)
	if !ok {
		c.log.WithField("url", rawURL).Info("No video id in URL")
		return domain.Metadata{}, nil
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", id)
	q.Set("key", c.apiKey)
	endpoint := c.baseURL + "/videos?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("create request: %w", err)
	}

	log := c.log.WithField("video_id", id)

	// Network failures and error statuses degrade to an empty preview; only a
	// response that cannot be decoded or the caller giving up is an error.
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Metadata{}, ctxErr
		}
		log.WithError(err).Warn("Videos API unreachable")
		return domain.Metadata{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.Status).Warn("Videos API returned an error status")
		return domain.Metadata{}, nil
	}

	var body videoListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Metadata{}, fmt.Errorf("decode videos api response: %w", err)
	}
	if len(body.Items) == 0 {
		log.Info("Video not found")
		return domain.Metadata{}, nil
	}

	snippet := body.Items[0].Snippet
	var md domain.Metadata
	if title := firstNonEmpty(snippet.Localized.Title, snippet.Title); title != "" {
		md.Title = domain.StringPtr(title)
	}
	if desc := firstNonEmpty(snippet.Localized.Description, snippet.Description); desc != "" {
		md.Description = domain.StringPtr(desc)
	}
	for _, key := range thumbnailPreference {
		if thumb, ok := snippet.Thumbnails[key]; ok && thumb.URL != "" {
			md.ImageURL = domain.StringPtr(thumb.URL)
			break
		}
	}
	return md, nil
}

// VideoID extracts the video id from watch, youtu.be, shorts, embed and
// live URLs.
func VideoID(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch {
	case host == "youtu.be":
		id = segments[0]
	case strings.HasSuffix(host, "youtube.com"):
		switch segments[0] {
		case "watch":
			id = u.Query().Get("v")
		case "shorts", "embed", "live", "v":
			if len(segments) > 1 {
				id = segments[1]
			}
		}
	}
	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
