package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traktical/handlers"
	"traktical/internal/auth"
	"traktical/models"
	"traktical/services/calendar"
	"traktical/services/tokens"
	"traktical/services/trakt"
)

type fakeRenderer struct {
	body []byte
	err  error
	reqs []calendar.Request
}

func (f *fakeRenderer) Render(_ context.Context, req calendar.Request) ([]byte, error) {
	f.reqs = append(f.reqs, req)
	return f.body, f.err
}

var feedUser = &models.UserRecord{UserID: "0123456789abcdef0123456789abcdef01234567", UserSlug: "sean"}

// setupCalendarRouter mounts the handler the way main does, with a stub in
// place of the key middleware.
func setupCalendarRouter(renderer *fakeRenderer, withUser bool) *mux.Router {
	h := handlers.NewCalendarHandler(renderer)
	r := mux.NewRouter()
	if withUser {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), feedUser)))
			})
		})
	}
	r.HandleFunc("/{kind}/json", h.Preview).Methods(http.MethodGet)
	r.HandleFunc("/{kind}", h.Feed).Methods(http.MethodGet)
	return r
}

func serve(r http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestFeed_ServesICS(t *testing.T) {
	renderer := &fakeRenderer{body: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")}
	rec := serve(setupCalendarRouter(renderer, true), "/shows?key=k&days_ago=7&period=14")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=trakt-calendar-shows.ics", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", rec.Body.String())

	require.Len(t, renderer.reqs, 1)
	got := renderer.reqs[0]
	assert.Equal(t, models.KindShows, got.Kind)
	assert.Equal(t, calendar.FormatICS, got.Format)
	assert.Equal(t, 7, got.DaysAgo)
	assert.Equal(t, 14, got.Period)
	assert.Same(t, feedUser, got.User)
}

func TestFeed_MoviesFilename(t *testing.T) {
	rec := serve(setupCalendarRouter(&fakeRenderer{}, true), "/movies?key=k")
	assert.Equal(t, "attachment; filename=trakt-calendar-movies.ics", rec.Header().Get("Content-Disposition"))
}

func TestFeed_Defaults(t *testing.T) {
	renderer := &fakeRenderer{}
	serve(setupCalendarRouter(renderer, true), "/movies?key=k")

	require.Len(t, renderer.reqs, 1)
	assert.Equal(t, 30, renderer.reqs[0].DaysAgo)
	assert.Equal(t, 90, renderer.reqs[0].Period)
}

func TestFeed_UnknownKind(t *testing.T) {
	renderer := &fakeRenderer{}
	rec := serve(setupCalendarRouter(renderer, true), "/episodes?key=k")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, renderer.reqs)
}

func TestFeed_NonIntegerParams(t *testing.T) {
	renderer := &fakeRenderer{}
	for _, target := range []string{"/shows?key=k&days_ago=abc", "/shows?key=k&period=1.5"} {
		rec := serve(setupCalendarRouter(renderer, true), target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Empty(t, renderer.reqs)
}

func TestFeed_ValidationError(t *testing.T) {
	renderer := &fakeRenderer{err: trakt.ValidateWindow(31, 0)}
	rec := serve(setupCalendarRouter(renderer, true), "/shows?key=k&days_ago=31&period=0")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t,
		`{"error":"days_ago must be between 0 and 30, got 31; period must be between 1 and 90, got 0"}`,
		rec.Body.String())
}

func TestFeed_UpstreamFailure(t *testing.T) {
	renderer := &fakeRenderer{err: fmt.Errorf("%w: window 2024-01-01+33: 503", calendar.ErrUpstream)}
	rec := serve(setupCalendarRouter(renderer, true), "/shows?key=k")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFeed_RefreshFailure(t *testing.T) {
	renderer := &fakeRenderer{err: fmt.Errorf("%w: invalid_grant", tokens.ErrRefreshFailed)}
	rec := serve(setupCalendarRouter(renderer, true), "/shows?key=k")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFeed_UnexpectedFailure(t *testing.T) {
	renderer := &fakeRenderer{err: errors.New("disk full")}
	rec := serve(setupCalendarRouter(renderer, true), "/shows?key=k")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFeed_NoUserInContext(t *testing.T) {
	renderer := &fakeRenderer{}
	rec := serve(setupCalendarRouter(renderer, false), "/shows")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, renderer.reqs)
}

func TestPreview_ServesJSONWithCORS(t *testing.T) {
	renderer := &fakeRenderer{body: []byte(`{"type":"movies","data":[]}`)}
	rec := serve(setupCalendarRouter(renderer, true), "/movies/json?key=k")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"type":"movies","data":[]}`, rec.Body.String())

	require.Len(t, renderer.reqs, 1)
	assert.Equal(t, calendar.FormatJSON, renderer.reqs[0].Format)
	assert.Equal(t, models.KindMovies, renderer.reqs[0].Kind)
}

func TestPreview_ErrorsKeepCORS(t *testing.T) {
	renderer := &fakeRenderer{err: trakt.ValidateWindow(0, 91)}
	rec := serve(setupCalendarRouter(renderer, true), "/shows/json?key=k&period=91")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
