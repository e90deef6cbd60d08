package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	ics "github.com/arran4/golang-ical"
	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"

	"traktical/models"
)

const (
	prodID = "-//Trakt//trakt_ical//EN"

	defaultEpisodeDuration = 30 * time.Minute
	defaultMovieDuration   = 2 * time.Hour
)

// EventEnd returns the end instant of an entry: start plus runtime, or a
// per-kind default when the runtime is unknown.
func EventEnd(e models.ScheduleEntry) time.Time {
	if e.Runtime > 0 {
		return e.At.Add(time.Duration(e.Runtime) * time.Minute)
	}
	if e.Kind == models.KindMovies {
		return e.At.Add(defaultMovieDuration)
	}
	return e.At.Add(defaultEpisodeDuration)
}

// EpisodeUID identifies an episode across feed rebuilds.
func EpisodeUID(show string, season, number int) string {
	return fmt.Sprintf("%s-%d-%d", slugify(show), season, number)
}

// MovieUID identifies a movie release across feed rebuilds.
func MovieUID(title, released string) string {
	return slugify(title) + "-" + released
}

// UID returns the stable identifier of e.
func UID(e models.ScheduleEntry) string {
	if e.Kind == models.KindMovies {
		return MovieUID(e.Title, releaseDate(e))
	}
	return EpisodeUID(e.Show, e.Season, e.Number)
}

// Summary returns the event title shown by calendar clients.
func Summary(e models.ScheduleEntry) string {
	if e.Kind == models.KindMovies {
		year := e.Year
		if t, err := time.Parse("2006-01-02", e.Released); err == nil {
			year = t.Year()
		}
		if year == 0 {
			return e.Title
		}
		return fmt.Sprintf("%s (%d)", e.Title, year)
	}
	return fmt.Sprintf("%s - S%02dE%02d", e.Show, e.Season, e.Number)
}

// Description returns the event body, falling back to the title when there
// is no synopsis.
func Description(e models.ScheduleEntry) string {
	overview := strings.TrimSpace(e.Overview)
	if e.Kind == models.KindMovies {
		if overview == "" {
			return e.Title
		}
		return overview
	}
	if overview == "" {
		return e.Title
	}
	return e.Title + "\n" + overview
}

// SortEntries orders entries chronologically, breaking ties by UID.
func SortEntries(entries []models.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.Before(entries[j].At)
		}
		return UID(entries[i]) < UID(entries[j])
	})
}

// BuildShowsCalendar renders episode entries as an iCalendar document.
func BuildShowsCalendar(entries []models.ScheduleEntry, stamp time.Time) string {
	return build("Trakt Shows", entries, stamp)
}

// BuildMoviesCalendar renders movie entries as an iCalendar document.
func BuildMoviesCalendar(entries []models.ScheduleEntry, stamp time.Time) string {
	return build("Trakt Movies", entries, stamp)
}

func build(name string, entries []models.ScheduleEntry, stamp time.Time) string {
	sorted := make([]models.ScheduleEntry, len(entries))
	copy(sorted, entries)
	SortEntries(sorted)

	cal := ics.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetXWRCalName(name)

	stamp = stamp.UTC()
	for _, e := range sorted {
		event := cal.AddEvent(cleanText(UID(e)))
		event.SetDtStampTime(stamp)
		event.SetStartAt(e.At.UTC())
		event.SetEndAt(EventEnd(e).UTC())
		event.SetSummary(cleanText(Summary(e)))
		event.SetDescription(cleanText(Description(e)))
		if network := strings.TrimSpace(e.Network); network != "" {
			event.SetLocation(cleanText(network))
		}
	}
	return cal.Serialize()
}

func releaseDate(e models.ScheduleEntry) string {
	if e.Released != "" {
		return e.Released
	}
	return e.At.UTC().Format("2006-01-02")
}

// cleanText makes s valid NFC-normalized UTF-8.
func cleanText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return norm.NFC.String(s)
}

// slugify folds s to lowercase ASCII words joined by dashes.
func slugify(s string) string {
	ascii := strings.ToLower(unidecode.Unidecode(cleanText(s)))
	var b strings.Builder
	b.Grow(len(ascii))
	dash := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	return out
}
