package source

import (
	"context"
	"fmt"

	"github.com/curbdata/parking-aggregator/internal/cache"
	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/observability"
)

// CachedSearcher wraps a PlaceSearcher with a TTL cache so repeated
// availability queries in the same area do not burn API quota.
type CachedSearcher struct {
	inner   domain.PlaceSearcher
	cache   *cache.SpotCache
	metrics *observability.Metrics
}

// NewCachedSearcher creates a cache decorator around a place searcher.
func NewCachedSearcher(inner domain.PlaceSearcher, spotCache *cache.SpotCache, metrics *observability.Metrics) *CachedSearcher {
	return &CachedSearcher{inner: inner, cache: spotCache, metrics: metrics}
}

// SearchNearby implements domain.PlaceSearcher.
func (c *CachedSearcher) SearchNearby(ctx context.Context, lat, lon, radiusMeters float64) ([]domain.CandidateSpot, error) {
	// Four decimals (~11 m) so queries from nearly the same point share an
	// entry.
	key := fmt.Sprintf("%.4f,%.4f,%d", lat, lon, int(radiusMeters))
	if spots, ok := c.cache.Get(key); ok {
		c.metrics.PlacesCache.WithLabelValues("hit").Inc()
		return spots, nil
	}
	c.metrics.PlacesCache.WithLabelValues("miss").Inc()

	spots, err := c.inner.SearchNearby(ctx, lat, lon, radiusMeters)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient empty responses can be
	// retried.
	if len(spots) > 0 {
		c.cache.Put(key, spots)
	}
	return spots, nil
}
