package geocode

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"wisebox-backend/internal/cache"
)

// Cached memoizes successful lookups in a cache.Cache. Failures are not
// cached so a retry reaches the upstream geocoder again.
type Cached struct {
	next  Geocoder
	cache cache.Cache
	ttl   time.Duration
}

func NewCached(next Geocoder, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl}
}

func (c *Cached) Geocode(ctx context.Context, address string) (Coordinates, error) {
	key := cacheKey(address)
	if raw, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var coords Coordinates
		if json.Unmarshal(raw, &coords) == nil {
			return coords, nil
		}
	}

	coords, err := c.next.Geocode(ctx, address)
	if err != nil {
		return Coordinates{}, err
	}
	if raw, err := json.Marshal(coords); err == nil {
		_ = c.cache.Set(ctx, key, raw, c.ttl)
	}
	return coords, nil
}

func cacheKey(address string) string {
	return cache.Key("geocode", strings.Join(strings.Fields(strings.ToLower(address)), " "))
}
