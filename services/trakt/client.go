package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"traktical/internal/metrics"
)

const traktAPIVersion = "2"

var traktAPIBaseURL = "https://api.trakt.tv"

// setBaseURL points new clients at a different API host.
func setBaseURL(u string) {
	traktAPIBaseURL = u
}

// Client handles Trakt API interactions for OAuth and data fetching
type Client struct {
	httpClient    *http.Client
	baseURL       string
	clientID      string
	clientSecret  string
	redirectURI   string
	attempts      uint
	retryDelay    time.Duration
	windowTimeout time.Duration
	now           func() time.Time
}

// APIError is a non-2xx response from Trakt.
type APIError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trakt %s failed: %s - %s", e.Op, e.Status, e.Body)
}

// TokenResponse represents the response from /oauth/token
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// UserSettings is the subset of /users/settings needed to identify an account.
type UserSettings struct {
	User struct {
		Username string `json:"username"`
		Name     string `json:"name,omitempty"`
		IDs      struct {
			Slug string `json:"slug"`
		} `json:"ids"`
	} `json:"user"`
}

// IDs holds external identifiers for a media item
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// Movie represents a Trakt movie with extended=full fields
type Movie struct {
	Title    string `json:"title"`
	Year     int    `json:"year"`
	IDs      IDs    `json:"ids"`
	Overview string `json:"overview,omitempty"`
	Runtime  int    `json:"runtime,omitempty"`
	Released string `json:"released,omitempty"`
}

// Show represents a Trakt TV show with extended=full fields
type Show struct {
	Title    string `json:"title"`
	Year     int    `json:"year"`
	IDs      IDs    `json:"ids"`
	Overview string `json:"overview,omitempty"`
	Runtime  int    `json:"runtime,omitempty"`
	Network  string `json:"network,omitempty"`
}

// Episode represents a Trakt episode with extended=full fields
type Episode struct {
	Season   int    `json:"season"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	IDs      IDs    `json:"ids"`
	Overview string `json:"overview,omitempty"`
	Runtime  int    `json:"runtime,omitempty"`
}

// CalendarShow is one entry of /calendars/my/shows
type CalendarShow struct {
	FirstAired time.Time `json:"first_aired"`
	Episode    Episode   `json:"episode"`
	Show       Show      `json:"show"`
}

// CalendarMovie is one entry of /calendars/my/movies
type CalendarMovie struct {
	Released string `json:"released"`
	Movie    Movie  `json:"movie"`
}

// NewClient creates a new Trakt API client
func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       traktAPIBaseURL,
		clientID:      clientID,
		clientSecret:  clientSecret,
		redirectURI:   "urn:ietf:wg:oauth:2.0:oob",
		attempts:      3,
		retryDelay:    500 * time.Millisecond,
		windowTimeout: DefaultWindowTimeout,
		now:           time.Now,
	}
}

// SetBaseURL overrides the API host, e.g. for a proxy.
func (c *Client) SetBaseURL(u string) {
	if u != "" {
		c.baseURL = u
	}
}

// SetRedirectURI sets the redirect URI sent with token refreshes. Trakt
// rejects refreshes whose redirect URI differs from the registered one.
func (c *Client) SetRedirectURI(u string) {
	c.redirectURI = u
}

// HasCredentials reports whether a client id and secret are configured.
func (c *Client) HasCredentials() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// setTraktHeaders adds required Trakt API headers to a request
func (c *Client) setTraktHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", traktAPIVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// RefreshAccessToken exchanges a refresh token for a new token pair
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	payload := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  c.redirectURI,
		"grant_type":    "refresh_token",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("trakt", "error").Inc()
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues("trakt", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Op: "token refresh", StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if token.CreatedAt == 0 {
		token.CreatedAt = time.Now().Unix()
	}

	return &token, nil
}

// GetUserSettings retrieves the settings of the authenticated account
func (c *Client) GetUserSettings(ctx context.Context, accessToken string) (*UserSettings, error) {
	var settings UserSettings
	if err := c.getJSON(ctx, "user settings", "/users/settings", accessToken, &settings); err != nil {
		return nil, err
	}
	if settings.User.IDs.Slug == "" {
		return nil, errors.New("trakt user settings: missing slug")
	}
	return &settings, nil
}

// GetShowCalendar fetches episodes airing on shows the user follows,
// from startDate (YYYY-MM-DD) for days days.
func (c *Client) GetShowCalendar(ctx context.Context, accessToken, startDate string, days int) ([]CalendarShow, error) {
	var items []CalendarShow
	path := fmt.Sprintf("/calendars/my/shows/%s/%d?extended=full", startDate, days)
	if err := c.getJSON(ctx, "show calendar", path, accessToken, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetMovieCalendar fetches movies releasing from startDate for days days.
func (c *Client) GetMovieCalendar(ctx context.Context, accessToken, startDate string, days int) ([]CalendarMovie, error) {
	var items []CalendarMovie
	path := fmt.Sprintf("/calendars/my/movies/%s/%d?extended=full", startDate, days)
	if err := c.getJSON(ctx, "movie calendar", path, accessToken, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// getJSON issues an authenticated GET and decodes the body into out.
// Network errors, 429 and 5xx responses are retried; other failures are not.
func (c *Client) getJSON(ctx context.Context, op, path, accessToken string, out any) error {
	body, err := retry.DoWithData(
		func() ([]byte, error) {
			return c.get(ctx, op, path, accessToken)
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
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}

	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("trakt", "error").Inc()
		if ctx.Err() != nil {
			return nil, retry.Unrecoverable(fmt.Errorf("trakt api request: %w", err))
		}
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues("trakt", strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, apiErr
		}
		return nil, retry.Unrecoverable(apiErr)
	}

	return respBody, nil
}

// IsUnauthorized reports whether err is a Trakt 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
