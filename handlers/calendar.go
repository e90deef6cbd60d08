package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"traktical/internal/auth"
	"traktical/models"
	"traktical/services/calendar"
	"traktical/services/tokens"
	"traktical/services/trakt"
)

const (
	defaultDaysAgo = 30
	defaultPeriod  = 90
	feedMaxAge     = "max-age=3600"
)

// feedRenderer builds a calendar feed body.
type feedRenderer interface {
	Render(ctx context.Context, req calendar.Request) ([]byte, error)
}

// CalendarHandler serves the subscribable .ics feeds and their JSON preview.
type CalendarHandler struct {
	feeds feedRenderer
	log   *slog.Logger
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(feeds feedRenderer) *CalendarHandler {
	return &CalendarHandler{
		feeds: feeds,
		log:   slog.Default().With("component", "calendar_handler"),
	}
}

// Feed returns the iCalendar document for the key's owner.
// GET /{kind:shows|movies}?key=&days_ago=&period=
func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r, calendar.FormatICS)
	if !ok {
		return
	}

	body, err := h.feeds.Render(r.Context(), req)
	if err != nil {
		h.renderError(w, r, req, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=trakt-calendar-%s.ics", req.Kind))
	w.Header().Set("Cache-Control", feedMaxAge)
	w.Write(body)
}

// Preview returns the day-grouped JSON preview used by the landing page.
// GET /{kind:shows|movies}/json?key=&days_ago=&period=
func (h *CalendarHandler) Preview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	req, ok := h.parseRequest(w, r, calendar.FormatJSON)
	if !ok {
		return
	}

	body, err := h.feeds.Render(r.Context(), req)
	if err != nil {
		h.renderError(w, r, req, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", feedMaxAge)
	w.Write(body)
}

func (h *CalendarHandler) parseRequest(w http.ResponseWriter, r *http.Request, format calendar.Format) (calendar.Request, bool) {
	kind, ok := models.ParseMediaKind(mux.Vars(r)["kind"])
	if !ok {
		jsonError(w, "unknown calendar type", http.StatusNotFound)
		return calendar.Request{}, false
	}

	user := auth.GetUser(r)
	if user == nil {
		jsonError(w, "no key provided", http.StatusUnauthorized)
		return calendar.Request{}, false
	}

	q := r.URL.Query()
	daysAgo, err := intParam(q.Get("days_ago"), defaultDaysAgo)
	if err != nil {
		jsonError(w, "days_ago must be an integer", http.StatusBadRequest)
		return calendar.Request{}, false
	}
	period, err := intParam(q.Get("period"), defaultPeriod)
	if err != nil {
		jsonError(w, "period must be an integer", http.StatusBadRequest)
		return calendar.Request{}, false
	}

	return calendar.Request{
		User:    user,
		Kind:    kind,
		Format:  format,
		DaysAgo: daysAgo,
		Period:  period,
	}, true
}

func (h *CalendarHandler) renderError(w http.ResponseWriter, r *http.Request, req calendar.Request, err error) {
	switch {
	case errors.Is(err, trakt.ErrInvalidWindow):
		jsonError(w, validationMessage(err), http.StatusBadRequest)
	case errors.Is(err, tokens.ErrRefreshFailed):
		h.log.Warn("token refresh failed", "user_slug", req.User.UserSlug, "error", err, "request_id", auth.GetRequestID(r.Context()))
		jsonError(w, "could not refresh Trakt authorization, please sign in again", http.StatusBadGateway)
	case errors.Is(err, calendar.ErrUpstream):
		h.log.Error("calendar fetch failed", "kind", req.Kind, "user_slug", req.User.UserSlug, "error", err, "request_id", auth.GetRequestID(r.Context()))
		jsonError(w, "failed to fetch calendar from Trakt", http.StatusBadGateway)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		h.log.Error("calendar render failed", "kind", req.Kind, "error", err, "request_id", auth.GetRequestID(r.Context()))
		jsonError(w, "failed to build calendar", http.StatusInternalServerError)
	}
}

// validationMessage drops the sentinel prefix so clients see only the field errors.
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), trakt.ErrInvalidWindow.Error()+": ")
	return strings.ReplaceAll(msg, "\n", "; ")
}

func intParam(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
