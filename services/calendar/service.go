package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"traktical/internal/metrics"
	"traktical/models"
	"traktical/services/trakt"
)

// Format selects the rendering of a feed.
type Format string

const (
	FormatICS  Format = "ics"
	FormatJSON Format = "json"
)

const defaultBuildTimeout = 2 * time.Minute

// ErrUpstream wraps failures talking to Trakt while building a feed.
var ErrUpstream = errors.New("upstream calendar fetch failed")

// ScheduleSource fetches raw calendar entries from Trakt.
type ScheduleSource interface {
	ShowsBatch(ctx context.Context, accessToken string, daysAgo, period int) ([]trakt.CalendarShow, error)
	MoviesBatch(ctx context.Context, accessToken string, daysAgo, period int) ([]trakt.CalendarMovie, error)
}

// TokenSource hands out a usable access token for a user.
type TokenSource interface {
	FreshFor(ctx context.Context, user *models.UserRecord) (models.StoredToken, error)
}

// Request identifies one feed build.
type Request struct {
	User    *models.UserRecord
	Kind    models.MediaKind
	Format  Format
	DaysAgo int
	Period  int
}

func (r Request) cacheKey() string {
	return cacheKey(string(r.Kind), string(r.Format), r.User.UserID, strconv.Itoa(r.DaysAgo), strconv.Itoa(r.Period))
}

// Service builds calendar feeds and previews for users.
type Service struct {
	source   ScheduleSource
	tokens   TokenSource
	enricher Enricher
	cache    *FeedCache
	group    singleflight.Group
	// buildTimeout bounds a shared build independently of its callers.
	buildTimeout time.Duration
	now          func() time.Time
	log          *slog.Logger
}

// NewService creates a calendar service. enricher and cache may be nil.
func NewService(source ScheduleSource, tokens TokenSource, enricher Enricher, cache *FeedCache) *Service {
	return &Service{
		source:       source,
		tokens:       tokens,
		enricher:     enricher,
		cache:        cache,
		buildTimeout: defaultBuildTimeout,
		now:          time.Now,
		log:          slog.Default().With("component", "calendar"),
	}
}

// Render returns the feed body for req, serving from cache when possible.
// Concurrent identical requests share a single build.
func (s *Service) Render(ctx context.Context, req Request) ([]byte, error) {
	if err := trakt.ValidateWindow(req.DaysAgo, req.Period); err != nil {
		return nil, err
	}

	key := req.cacheKey()
	if body, ok := s.cache.Get(key); ok {
		metrics.FeedCacheHits.Inc()
		return body, nil
	}

	// The build outlives any single caller: others may be waiting on it.
	ch := s.group.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.buildTimeout)
		defer cancel()
		body, err := s.build(buildCtx, req)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(key, body); err != nil {
			s.log.Warn("feed cache write failed", "error", err)
		}
		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			metrics.FeedBuilds.WithLabelValues(string(req.Kind), string(req.Format), "error").Inc()
			return nil, res.Err
		}
		if !res.Shared {
			metrics.FeedBuilds.WithLabelValues(string(req.Kind), string(req.Format), "ok").Inc()
		}
		return res.Val.([]byte), nil
	}
}

func (s *Service) build(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	tok, err := s.tokens.FreshFor(ctx, req.User)
	if err != nil {
		return nil, err
	}

	entries, err := s.Entries(ctx, req.Kind, tok.AccessToken, req.DaysAgo, req.Period)
	if err != nil {
		return nil, err
	}

	var body []byte
	switch req.Format {
	case FormatJSON:
		body, err = json.Marshal(BuildPreview(ctx, req.Kind, entries, s.enricher))
		if err != nil {
			return nil, fmt.Errorf("encode preview: %w", err)
		}
	default:
		if req.Kind == models.KindMovies {
			body = []byte(BuildMoviesCalendar(entries, s.now()))
		} else {
			s.fillNetworks(ctx, entries)
			body = []byte(BuildShowsCalendar(entries, s.now()))
		}
	}

	s.log.Info("feed built",
		"kind", req.Kind,
		"format", req.Format,
		"user_slug", req.User.UserSlug,
		"entries", len(entries),
		"duration", time.Since(start),
	)
	return body, nil
}

// Entries fetches and normalizes the schedule for the requested range,
// sorted chronologically.
func (s *Service) Entries(ctx context.Context, kind models.MediaKind, accessToken string, daysAgo, period int) ([]models.ScheduleEntry, error) {
	var entries []models.ScheduleEntry
	switch kind {
	case models.KindShows:
		shows, err := s.source.ShowsBatch(ctx, accessToken, daysAgo, period)
		if err != nil {
			return nil, upstreamErr(err)
		}
		entries = make([]models.ScheduleEntry, 0, len(shows))
		for _, item := range shows {
			entries = append(entries, episodeEntry(item))
		}
	case models.KindMovies:
		movies, err := s.source.MoviesBatch(ctx, accessToken, daysAgo, period)
		if err != nil {
			return nil, upstreamErr(err)
		}
		entries = make([]models.ScheduleEntry, 0, len(movies))
		for _, item := range movies {
			entry, ok := movieEntry(item)
			if !ok {
				s.log.Warn("skipping movie with unparseable release date", "title", item.Movie.Title, "released", item.Released)
				continue
			}
			entries = append(entries, entry)
		}
	default:
		return nil, fmt.Errorf("unknown calendar type %q", kind)
	}

	SortEntries(entries)
	return entries, nil
}

// fillNetworks looks up missing show networks on TMDB.
func (s *Service) fillNetworks(ctx context.Context, entries []models.ScheduleEntry) {
	if s.enricher == nil {
		return
	}
	p := pool.New().WithMaxGoroutines(enrichConcurrency)
	for i := range entries {
		if entries[i].Network != "" || entries[i].IDs.TMDB <= 0 {
			continue
		}
		i := i // per-iteration copy for go < 1.22
		p.Go(func() {
			entries[i].Network = s.enricher.ShowNetwork(ctx, entries[i].IDs.TMDB)
		})
	}
	p.Wait()
}

func upstreamErr(err error) error {
	if errors.Is(err, trakt.ErrInvalidWindow) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

func episodeEntry(item trakt.CalendarShow) models.ScheduleEntry {
	runtime := item.Episode.Runtime
	if runtime <= 0 {
		runtime = item.Show.Runtime
	}
	return models.ScheduleEntry{
		Kind:     models.KindShows,
		Title:    item.Episode.Title,
		Show:     item.Show.Title,
		Overview: item.Episode.Overview,
		Runtime:  runtime,
		At:       item.FirstAired.UTC(),
		Year:     item.Show.Year,
		Season:   item.Episode.Season,
		Number:   item.Episode.Number,
		Network:  strings.TrimSpace(item.Show.Network),
		IDs:      externalIDs(item.Show.IDs),
	}
}

func movieEntry(item trakt.CalendarMovie) (models.ScheduleEntry, bool) {
	released := item.Released
	if released == "" {
		released = item.Movie.Released
	}
	at, err := time.Parse("2006-01-02", released)
	if err != nil {
		return models.ScheduleEntry{}, false
	}
	return models.ScheduleEntry{
		Kind:     models.KindMovies,
		Title:    item.Movie.Title,
		Overview: item.Movie.Overview,
		Runtime:  item.Movie.Runtime,
		At:       at,
		Released: released,
		Year:     item.Movie.Year,
		IDs:      externalIDs(item.Movie.IDs),
	}, true
}

func externalIDs(ids trakt.IDs) models.ExternalIDs {
	return models.ExternalIDs{
		Trakt: ids.Trakt,
		Slug:  ids.Slug,
		IMDB:  ids.IMDB,
		TMDB:  ids.TMDB,
		TVDB:  ids.TVDB,
	}
}
