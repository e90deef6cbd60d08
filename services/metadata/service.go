package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 2048
	defaultCacheTTL  = 6 * time.Hour
)

// Artwork holds the preview image URLs for a title. Missing images are nil.
type Artwork struct {
	Backdrop *string
	Logo     *string
}

// Service resolves TMDB artwork and networks on a best-effort basis: lookup
// failures are logged and reported as empty values, never as errors.
type Service struct {
	tmdb     *tmdbClient
	artwork  *expirable.LRU[string, Artwork]
	networks *expirable.LRU[int, string]
	log      *slog.Logger
}

// NewService creates a metadata service. An empty access token disables lookups.
func NewService(tmdbAccessToken string) *Service {
	return newService(newTMDBClient(tmdbAccessToken, nil), defaultCacheTTL)
}

func newService(client *tmdbClient, ttl time.Duration) *Service {
	return &Service{
		tmdb:     client,
		artwork:  expirable.NewLRU[string, Artwork](defaultCacheSize, nil, ttl),
		networks: expirable.NewLRU[int, string](defaultCacheSize, nil, ttl),
		log:      slog.Default().With("component", "metadata"),
	}
}

// NewServiceWithClient is used by tests in other packages to point at a fake TMDB.
func NewServiceWithClient(tmdbAccessToken, baseURL string, httpc *http.Client) *Service {
	client := newTMDBClient(tmdbAccessToken, httpc)
	client.baseURL = baseURL
	client.attempts = 1
	return newService(client, defaultCacheTTL)
}

// Enabled reports whether TMDB credentials are configured.
func (s *Service) Enabled() bool {
	return s != nil && s.tmdb.isConfigured()
}

// ShowArtwork returns backdrop and logo URLs for a TMDB tv id.
func (s *Service) ShowArtwork(ctx context.Context, tmdbID int) Artwork {
	return s.lookupArtwork(ctx, "tv", tmdbID)
}

// MovieArtwork returns backdrop and logo URLs for a TMDB movie id.
func (s *Service) MovieArtwork(ctx context.Context, tmdbID int) Artwork {
	return s.lookupArtwork(ctx, "movie", tmdbID)
}

func (s *Service) lookupArtwork(ctx context.Context, mediaType string, tmdbID int) Artwork {
	if !s.Enabled() || tmdbID <= 0 {
		return Artwork{}
	}

	key := fmt.Sprintf("%s:%d", mediaType, tmdbID)
	if art, ok := s.artwork.Get(key); ok {
		return art
	}

	images, err := s.tmdb.images(ctx, mediaType, tmdbID)
	if err != nil {
		s.log.Warn("tmdb image lookup failed", "type", mediaType, "tmdb_id", tmdbID, "error", err)
		return Artwork{}
	}

	var art Artwork
	if len(images.Backdrops) > 0 {
		art.Backdrop = buildTMDBImage(images.Backdrops[0].FilePath, tmdbBackdropSize)
	}
	if len(images.Logos) > 0 {
		art.Logo = buildTMDBImage(images.Logos[0].FilePath, tmdbLogoSize)
	}
	s.artwork.Add(key, art)
	return art
}

// ShowNetwork returns the first network TMDB lists for a show, or "".
func (s *Service) ShowNetwork(ctx context.Context, tmdbID int) string {
	if !s.Enabled() || tmdbID <= 0 {
		return ""
	}
	if network, ok := s.networks.Get(tmdbID); ok {
		return network
	}

	show, err := s.tmdb.show(ctx, tmdbID)
	if err != nil {
		s.log.Warn("tmdb show lookup failed", "tmdb_id", tmdbID, "error", err)
		return ""
	}

	var network string
	if len(show.Networks) > 0 {
		network = show.Networks[0].Name
	}
	s.networks.Add(tmdbID, network)
	return network
}
