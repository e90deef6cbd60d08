package calendar

import (
	"context"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"traktical/models"
	"traktical/services/metadata"
)

const (
	previewDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"
	enrichConcurrency = 8
	secondsPerDay     = 86400
)

// Enricher supplies optional artwork and network names.
type Enricher interface {
	ShowArtwork(ctx context.Context, tmdbID int) metadata.Artwork
	MovieArtwork(ctx context.Context, tmdbID int) metadata.Artwork
	ShowNetwork(ctx context.Context, tmdbID int) string
}

// BuildPreview groups entries by UTC day for the web preview. Artwork lookups
// run concurrently and never fail the preview; missing images are null.
func BuildPreview(ctx context.Context, kind models.MediaKind, entries []models.ScheduleEntry, enricher Enricher) models.PreviewResponse {
	items := make([]models.PreviewItem, len(entries))
	p := pool.New().WithMaxGoroutines(enrichConcurrency)
	for i, e := range entries {
		i, e := i, e // per-iteration copy for go < 1.22
		p.Go(func() {
			items[i] = previewItem(ctx, e, enricher)
		})
	}
	p.Wait()

	groups := make(map[int64]*models.DayGroup)
	for i, e := range entries {
		day := dayStart(e.At)
		g, ok := groups[day]
		if !ok {
			g = &models.DayGroup{
				DateUnix: day,
				DateStr:  time.Unix(day, 0).UTC().Format(previewDateLayout),
				Items:    []models.PreviewItem{},
			}
			groups[day] = g
		}
		g.Items = append(g.Items, items[i])
	}

	resp := models.PreviewResponse{Type: kind, Data: make([]models.DayGroup, 0, len(groups))}
	for _, g := range groups {
		sort.SliceStable(g.Items, func(a, b int) bool {
			return itemInstant(g.Items[a]) < itemInstant(g.Items[b])
		})
		resp.Data = append(resp.Data, *g)
	}
	sort.Slice(resp.Data, func(a, b int) bool {
		return resp.Data[a].DateUnix < resp.Data[b].DateUnix
	})
	return resp
}

func previewItem(ctx context.Context, e models.ScheduleEntry, enricher Enricher) models.PreviewItem {
	item := models.PreviewItem{
		Title:    cleanText(e.Title),
		Overview: cleanText(e.Overview),
		Runtime:  e.Runtime,
		Network:  e.Network,
		IDs:      e.IDs,
	}

	var art metadata.Artwork
	if e.Kind == models.KindMovies {
		item.Released = releaseDate(e)
		item.ReleasedUnix = e.At.Unix()
		if enricher != nil {
			art = enricher.MovieArtwork(ctx, e.IDs.TMDB)
		}
	} else {
		season, number := e.Season, e.Number
		at := e.At.UTC()
		item.Show = cleanText(e.Show)
		item.Season = &season
		item.Number = &number
		item.AirsAt = &at
		item.AirsAtUnix = at.Unix()
		if enricher != nil {
			art = enricher.ShowArtwork(ctx, e.IDs.TMDB)
			if item.Network == "" {
				item.Network = enricher.ShowNetwork(ctx, e.IDs.TMDB)
			}
		}
	}
	item.Background = art.Backdrop
	item.Logo = art.Logo
	return item
}

func dayStart(t time.Time) int64 {
	u := t.Unix()
	return u - ((u%secondsPerDay)+secondsPerDay)%secondsPerDay
}

func itemInstant(item models.PreviewItem) int64 {
	if item.AirsAt != nil {
		return item.AirsAtUnix
	}
	return item.ReleasedUnix
}
