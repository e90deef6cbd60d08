package trakt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	origURL := traktAPIBaseURL
	t.Cleanup(func() { setBaseURL(origURL) })
	setBaseURL(serverURL)

	client := NewClient("test-client-id", "test-secret")
	client.retryDelay = time.Millisecond
	return client
}

func TestRefreshAccessToken(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("expected path /oauth/token, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&received)

		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			ExpiresIn:    7776000,
			CreatedAt:    1700000000,
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.SetRedirectURI("http://localhost:8000/trakt/callback")

	resp, err := client.RefreshAccessToken(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.AccessToken != "new-access" {
		t.Errorf("expected access token 'new-access', got %s", resp.AccessToken)
	}
	if received["grant_type"] != "refresh_token" {
		t.Errorf("expected grant_type refresh_token, got %s", received["grant_type"])
	}
	if received["refresh_token"] != "old-refresh" {
		t.Errorf("expected refresh token 'old-refresh', got %s", received["refresh_token"])
	}
	if received["redirect_uri"] != "http://localhost:8000/trakt/callback" {
		t.Errorf("unexpected redirect_uri %s", received["redirect_uri"])
	}

	stored := StoredTokenFromResponse(resp)
	if stored.CreatedAt != 1700000000 || stored.ExpiresIn != 7776000 {
		t.Errorf("unexpected stored token %+v", stored)
	}
}

func TestRefreshAccessToken_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.RefreshAccessToken(context.Background(), "revoked")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsUnauthorized(err) {
		t.Errorf("expected unauthorized error, got %v", err)
	}
}

func TestGetUserSettings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/settings" {
			t.Errorf("expected path /users/settings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("expected Authorization header")
		}
		if r.Header.Get("trakt-api-key") != "test-client-id" {
			t.Errorf("expected trakt-api-key header")
		}
		if r.Header.Get("trakt-api-version") != "2" {
			t.Errorf("expected trakt-api-version header")
		}
		w.Write([]byte(`{"user":{"username":"Sean","ids":{"slug":"sean"}}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	settings, err := client.GetUserSettings(context.Background(), "test-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.User.IDs.Slug != "sean" {
		t.Errorf("expected slug 'sean', got %s", settings.User.IDs.Slug)
	}
	if settings.User.Username != "Sean" {
		t.Errorf("expected username 'Sean', got %s", settings.User.Username)
	}
}

func TestGetUserSettings_MissingSlug(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"username":"x"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.GetUserSettings(context.Background(), "test-token"); err == nil {
		t.Fatal("expected error for missing slug")
	}
}

func TestGetShowCalendar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendars/my/shows/2024-01-01/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("extended") != "full" {
			t.Errorf("expected extended=full")
		}
		w.Write([]byte(`[{
			"first_aired": "2024-01-02T01:00:00.000Z",
			"episode": {"season": 2, "number": 5, "title": "Pilot", "runtime": 45, "ids": {"trakt": 1}},
			"show": {"title": "Severance", "year": 2022, "network": "Apple TV+", "ids": {"slug": "severance", "tmdb": 95396}}
		}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	items, err := client.GetShowCalendar(context.Background(), "test-token", "2024-01-01", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Show.Title != "Severance" || item.Episode.Season != 2 || item.Episode.Number != 5 {
		t.Errorf("unexpected item %+v", item)
	}
	want := time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC)
	if !item.FirstAired.Equal(want) {
		t.Errorf("expected first_aired %v, got %v", want, item.FirstAired)
	}
	if item.Show.Network != "Apple TV+" {
		t.Errorf("expected network Apple TV+, got %s", item.Show.Network)
	}
}

func TestGetMovieCalendar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendars/my/movies/2024-01-01/30" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"released":"2024-01-10","movie":{"title":"Dune","year":2024,"runtime":166,"ids":{"slug":"dune-2024"}}}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	items, err := client.GetMovieCalendar(context.Background(), "test-token", "2024-01-01", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Movie.Title != "Dune" || items[0].Released != "2024-01-10" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.GetShowCalendar(context.Background(), "test-token", "2024-01-01", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestGetJSON_DoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetShowCalendar(context.Background(), "bad-token", "2024-01-01", 7)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestHasCredentials(t *testing.T) {
	if NewClient("", "").HasCredentials() {
		t.Error("expected no credentials")
	}
	if !NewClient("id", "secret").HasCredentials() {
		t.Error("expected credentials")
	}
}
