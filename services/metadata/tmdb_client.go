package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"traktical/internal/metrics"
)

const (
	tmdbImageBaseURL = "https://image.tmdb.org/t/p/"
	tmdbBackdropSize = "w500"
	tmdbLogoSize     = "original"
)

var tmdbAPIBaseURL = "https://api.themoviedb.org/3"

func setBaseURL(u string) {
	tmdbAPIBaseURL = u
}

// Minimal TMDB v3 client (images and show details)

type tmdbClient struct {
	accessToken string
	baseURL     string
	httpc       *http.Client
	attempts    uint
	retryDelay  time.Duration
}

type tmdbImage struct {
	FilePath string `json:"file_path"`
}

type tmdbImages struct {
	Backdrops []tmdbImage `json:"backdrops"`
	Logos     []tmdbImage `json:"logos"`
}

type tmdbShow struct {
	Name     string `json:"name"`
	Networks []struct {
		Name string `json:"name"`
	} `json:"networks"`
}

type tmdbError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *tmdbError) Error() string {
	return fmt.Sprintf("tmdb request failed: %s - %s", e.Status, e.Body)
}

func newTMDBClient(accessToken string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &tmdbClient{
		accessToken: accessToken,
		baseURL:     tmdbAPIBaseURL,
		httpc:       httpc,
		attempts:    2,
		retryDelay:  250 * time.Millisecond,
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.accessToken != ""
}

// images fetches artwork for a "tv" or "movie" id.
func (c *tmdbClient) images(ctx context.Context, mediaType string, id int) (tmdbImages, error) {
	var out tmdbImages
	err := c.getJSON(ctx, fmt.Sprintf("/%s/%d/images", mediaType, id), &out)
	return out, err
}

func (c *tmdbClient) show(ctx context.Context, id int) (tmdbShow, error) {
	var out tmdbShow
	err := c.getJSON(ctx, fmt.Sprintf("/tv/%d", id), &out)
	return out, err
}

func (c *tmdbClient) getJSON(ctx context.Context, path string, out any) error {
	body, err := retry.DoWithData(
		func() ([]byte, error) {
			return c.get(ctx, path)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

func (c *tmdbClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("tmdb", "error").Inc()
		return nil, fmt.Errorf("tmdb api request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues("tmdb", strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		tErr := &tmdbError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, tErr
		}
		return nil, retry.Unrecoverable(tErr)
	}
	return body, nil
}

// buildTMDBImage returns the absolute image URL for path, or nil when there is none.
func buildTMDBImage(path, size string) *string {
	if path == "" {
		return nil
	}
	u := tmdbImageBaseURL + size + path
	return &u
}
