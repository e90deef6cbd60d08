package main

import (
	"log"
	"os"
	"time"

	"github.com/spf13/afero"

	"traktical/services/calendar"
)

// Drops every rendered feed from the response cache, e.g. after changing the
// event format so subscribers pick it up before the cache TTL runs out.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: clear_feed_cache <cache_dir>")
	}
	cacheDir := os.Args[1]

	if _, err := os.Stat(cacheDir); err != nil {
		log.Fatalf("Cache dir %s not usable: %v", cacheDir, err)
	}

	cache := calendar.NewFeedCache(afero.NewOsFs(), cacheDir, time.Hour)
	if err := cache.Clear(); err != nil {
		log.Fatalf("Failed to clear feed cache: %v", err)
	}
	log.Printf("Cleared feed cache in %s", cacheDir)
}
