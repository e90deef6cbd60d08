package models

import "time"

// MediaKind selects which Trakt calendar a feed is built from.
type MediaKind string

const (
	KindShows  MediaKind = "shows"
	KindMovies MediaKind = "movies"
)

// ParseMediaKind maps a route segment onto a MediaKind.
func ParseMediaKind(s string) (MediaKind, bool) {
	switch MediaKind(s) {
	case KindShows:
		return KindShows, true
	case KindMovies:
		return KindMovies, true
	default:
		return "", false
	}
}

// ExternalIDs holds the upstream identifiers of a show or movie.
type ExternalIDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// ScheduleEntry is one upcoming episode airing or movie release.
// Entries live for a single request and are never persisted.
type ScheduleEntry struct {
	Kind     MediaKind
	Title    string // episode title, or movie title
	Show     string // show title, episodes only
	Overview string
	// Runtime in minutes; zero when unknown.
	Runtime int
	// At is the air instant for episodes and midnight UTC of the release date for movies.
	At       time.Time
	Released string // YYYY-MM-DD, movies only
	Year     int
	Season   int
	Number   int
	Network  string
	IDs      ExternalIDs // show ids for episodes, movie ids for movies
}

// PreviewItem is a single entry of the JSON preview.
type PreviewItem struct {
	Title        string      `json:"title"`
	Overview     string      `json:"overview"`
	Runtime      int         `json:"runtime"`
	Show         string      `json:"show,omitempty"`
	Season       *int        `json:"season,omitempty"`
	Number       *int        `json:"number,omitempty"`
	AirsAt       *time.Time  `json:"airs_at,omitempty"`
	AirsAtUnix   int64       `json:"airs_at_unix,omitempty"`
	Released     string      `json:"released,omitempty"`
	ReleasedUnix int64       `json:"released_unix,omitempty"`
	Network      string      `json:"network,omitempty"`
	Background   *string     `json:"background"`
	Logo         *string     `json:"logo"`
	IDs          ExternalIDs `json:"ids"`
}

// DayGroup collects preview items sharing a UTC calendar day.
type DayGroup struct {
	DateUnix int64         `json:"date_unix"`
	DateStr  string        `json:"date_str"`
	Items    []PreviewItem `json:"items"`
}

// PreviewResponse is the body of GET /{shows|movies}/json.
type PreviewResponse struct {
	Type MediaKind  `json:"type"`
	Data []DayGroup `json:"data"`
}
