package astro

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"moonwatch/internal/cache"
	"moonwatch/internal/calendar"
)

const DefaultCacheTTL = 6 * time.Hour

// CachedSource serves repeated lookups from a cache.Store. Only successful
// observations are stored.
type CachedSource struct {
	source Source
	store  cache.Store
	ttl    time.Duration
}

func NewCachedSource(source Source, store cache.Store, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{source: source, store: store, ttl: ttl}
}

func CacheKey(date calendar.Date, location string) string {
	return fmt.Sprintf("moonwatch:observation:%s:%s", date, calendar.Urlify(location))
}

func (c *CachedSource) Fetch(ctx context.Context, date calendar.Date, location string) (*Observation, error) {
	if c.store == nil {
		return c.source.Fetch(ctx, date, location)
	}

	key := CacheKey(date, location)
	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		log.Printf("Cache read failed for %s: %v", key, err)
	} else if ok {
		var obs Observation
		if err := json.Unmarshal(raw, &obs); err == nil {
			obs.Location = location
			return &obs, nil
		}
		log.Printf("Discarding unreadable cache entry %s", key)
	}

	obs, err := c.source.Fetch(ctx, date, location)
	if err != nil || obs == nil {
		return obs, err
	}

	if raw, err := json.Marshal(obs); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			log.Printf("Cache write failed for %s: %v", key, err)
		}
	}
	return obs, nil
}
