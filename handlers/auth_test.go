package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traktical/handlers"
	"traktical/models"
	"traktical/services/accounts"
	"traktical/services/trakt"
)

type fakeAuthFlow struct {
	url      string
	urlErr   error
	stateErr error
	states   []string
}

func (f *fakeAuthFlow) AuthCodeURL() (string, error) { return f.url, f.urlErr }

func (f *fakeAuthFlow) VerifyState(state string) error {
	f.states = append(f.states, state)
	return f.stateErr
}

type fakeLinker struct {
	user  *models.UserRecord
	err   error
	codes []string
}

func (f *fakeLinker) Link(_ context.Context, code string) (*models.UserRecord, error) {
	f.codes = append(f.codes, code)
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

const consentURL = "https://trakt.tv/oauth/authorize?client_id=abc&redirect_uri=http%3A%2F%2Flocalhost%3A8000%2Ftrakt%2Fcallback&response_type=code&state=s1"

func TestAuthorize_RendersCountdownPage(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeAuthFlow{url: consentURL}, &fakeLinker{})

	rec := httptest.NewRecorder()
	h.Authorize(rec, httptest.NewRequest(http.MethodGet, "/auth", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Authorize with Trakt")
	assert.Contains(t, body, "Redirecting in 5 seconds")
	assert.Contains(t, body, "https://trakt.tv/oauth/authorize?client_id=abc&amp;redirect_uri=")
}

func TestAuthorize_URLFailure(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeAuthFlow{urlErr: errors.New("no key")}, &fakeLinker{})

	rec := httptest.NewRecorder()
	h.Authorize(rec, httptest.NewRequest(http.MethodGet, "/auth", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCallback_RedirectsWithKey(t *testing.T) {
	linker := &fakeLinker{user: &models.UserRecord{UserID: "0123456789abcdef0123456789abcdef01234567", UserSlug: "sean"}}
	flow := &fakeAuthFlow{}
	h := handlers.NewAuthHandler(flow, linker)

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/trakt/callback?code=abc&state=s1", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?key=0123456789abcdef0123456789abcdef01234567", rec.Header().Get("Location"))
	assert.Equal(t, []string{"s1"}, flow.states)
	assert.Equal(t, []string{"abc"}, linker.codes)
}

func TestCallback_RejectsBadState(t *testing.T) {
	linker := &fakeLinker{}
	h := handlers.NewAuthHandler(&fakeAuthFlow{stateErr: trakt.ErrInvalidState}, linker)

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=forged", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid or expired state"}`, rec.Body.String())
	assert.Empty(t, linker.codes)
}

func TestCallback_UserDenied(t *testing.T) {
	flow := &fakeAuthFlow{}
	h := handlers.NewAuthHandler(flow, &fakeLinker{})

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&state=s1", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, flow.states)
}

func TestCallback_MissingCode(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeAuthFlow{}, &fakeLinker{err: accounts.ErrCodeRequired})

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallback_LinkFailure(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeAuthFlow{}, &fakeLinker{err: errors.New("exchange code: 401")})

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=s1", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
