package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://www.googleapis.com/youtube/v3"

// APIResolver searches through the YouTube Data API v3.
type APIResolver struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAPIResolver(apiKey string, logger *slog.Logger) *APIResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIResolver{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultAPIBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// Resolve returns the watch URL of the top video hit. Without an API key every
// lookup is logged and reported as not found.
func (r *APIResolver) Resolve(ctx context.Context, song string) (string, error) {
	if r.apiKey == "" {
		r.logger.Error("youtube api key is not configured", "song", song)
		return "", fmt.Errorf("%w: %q", ErrNotFound, song)
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("maxResults", "1")
	q.Set("q", song)
	q.Set("key", r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create search request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("youtube search status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}
	if len(result.Items) == 0 || result.Items[0].ID.VideoID == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, song)
	}

	hit := result.Items[0]
	watchURL := "https://www.youtube.com/watch?v=" + hit.ID.VideoID
	r.logger.Info("found video", "song", song, "title", hit.Snippet.Title, "url", watchURL)
	return watchURL, nil
}
